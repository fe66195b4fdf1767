// README: Driver repository contract and its PostgreSQL implementation.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridequick/internal/geo"
	"ridequick/internal/types"
)

// Store is the storage collaborator for drivers. List methods return drivers
// in creation order.
type Store interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	List(ctx context.Context) ([]*Driver, error)
	ListAvailable(ctx context.Context) ([]*Driver, error)
	// FindAvailableWithin may return drivers slightly outside the radius;
	// the registry filters on exact distance.
	FindAvailableWithin(ctx context.Context, p types.Point, radiusKm float64) ([]*Driver, error)
	// MarkUnavailable flips availability only if the driver is available,
	// returning ErrUnavailable otherwise.
	MarkUnavailable(ctx context.Context, id types.ID) (*Driver, error)
	MarkAvailable(ctx context.Context, id types.ID) (*Driver, error)
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) (*Driver, error)
	Count(ctx context.Context) (int, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const driverColumns = `id, full_name, phone, license_plate, car_model, rating,
       is_available, current_lat, current_lng, created_at`

func (s *PGStore) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO drivers (
            id, full_name, phone, license_plate, car_model, rating,
            is_available, current_lat, current_lng, geohash, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(d.ID), d.FullName, d.Phone, d.LicensePlate, d.CarModel, d.Rating,
		d.IsAvailable, d.Location.Lat, d.Location.Lng, cellOf(d.Location), d.CreatedAt,
	)
	return types.StorageErr("driver.create", err)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr("driver.get", err)
	}
	return d, nil
}

func (s *PGStore) List(ctx context.Context) ([]*Driver, error) {
	return s.query(ctx, "driver.list", `SELECT `+driverColumns+` FROM drivers ORDER BY seq`)
}

func (s *PGStore) ListAvailable(ctx context.Context) ([]*Driver, error) {
	return s.query(ctx, "driver.list_available", `
        SELECT `+driverColumns+` FROM drivers
        WHERE is_available
        ORDER BY seq`)
}

// FindAvailableWithin prefilters on geohash covering cells; when the radius is
// too large for any cell size it falls back to every available driver.
func (s *PGStore) FindAvailableWithin(ctx context.Context, p types.Point, radiusKm float64) ([]*Driver, error) {
	cells, prec := geo.CoveringCells(p, radiusKm)
	if cells == nil {
		return s.ListAvailable(ctx)
	}
	return s.query(ctx, "driver.find_within", `
        SELECT `+driverColumns+` FROM drivers
        WHERE is_available AND substr(geohash, 1, $1) = ANY($2)
        ORDER BY seq`, int(prec), cells)
}

func (s *PGStore) MarkUnavailable(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
        UPDATE drivers SET is_available = FALSE
        WHERE id = $1 AND is_available
        RETURNING `+driverColumns, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, types.StorageErr("driver.mark_unavailable", err)
	}
	return d, nil
}

func (s *PGStore) MarkAvailable(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
        UPDATE drivers SET is_available = TRUE
        WHERE id = $1
        RETURNING `+driverColumns, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr("driver.mark_available", err)
	}
	return d, nil
}

func (s *PGStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
        UPDATE drivers SET current_lat = $2, current_lng = $3, geohash = $4
        WHERE id = $1
        RETURNING `+driverColumns, string(id), p.Lat, p.Lng, cellOf(p))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr("driver.update_location", err)
	}
	return d, nil
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM drivers`).Scan(&n); err != nil {
		return 0, types.StorageErr("driver.count", err)
	}
	return n, nil
}

func (s *PGStore) query(ctx context.Context, op, sql string, args ...any) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.StorageErr(op, err)
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, types.StorageErr(op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.StorageErr(op, err)
	}
	return out, nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var id string
	err := row.Scan(
		&id, &d.FullName, &d.Phone, &d.LicensePlate, &d.CarModel, &d.Rating,
		&d.IsAvailable, &d.Location.Lat, &d.Location.Lng, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	return &d, nil
}

// storedCellPrecision is fine enough for any covering-cell prefix.
const storedCellPrecision = 9

func cellOf(p types.Point) string {
	return geo.Cell(p, storedCellPrecision)
}
