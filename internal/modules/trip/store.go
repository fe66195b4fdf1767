// README: Trip repository contract and its PostgreSQL implementation.
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridequick/internal/types"
)

// Store is the storage collaborator for trips. Update is a compare-and-set
// on StatusVersion: it writes the mutable fields (status, driver, start and
// end time) only when the stored version equals expectedVersion, and reports
// false without writing otherwise.
type Store interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	// ListByUser and ListByDriver return newest first.
	ListByUser(ctx context.Context, userID types.ID) ([]*Trip, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error)
	// ListPendingUnassigned returns pending trips without a driver, oldest first.
	ListPendingUnassigned(ctx context.Context, limit int) ([]*Trip, error)
	Update(ctx context.Context, t *Trip, expectedVersion int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	Events(ctx context.Context, tripID types.ID) ([]Event, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const tripColumns = `id, user_id, driver_id, cab_type_id,
       pickup_lat, pickup_lng, destination_lat, destination_lng,
       pickup_address, destination_address, distance_km, price,
       status, status_version, start_time, end_time, created_at`

func (s *PGStore) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO trips (
            id, user_id, driver_id, cab_type_id,
            pickup_lat, pickup_lng, destination_lat, destination_lng,
            pickup_address, destination_address, distance_km, price,
            status, status_version, start_time, end_time, created_at
        ) VALUES (
            $1, $2, $3, $4,
            $5, $6, $7, $8,
            $9, $10, $11, $12,
            $13, $14, $15, $16, $17
        )`,
		string(t.ID), string(t.UserID), toStringPtr(t.DriverID), string(t.CabTypeID),
		t.Pickup.Lat, t.Pickup.Lng, t.Destination.Lat, t.Destination.Lng,
		t.PickupAddress, t.DestinationAddress, t.Distance, t.Price,
		string(t.Status), t.StatusVersion, t.StartTime, t.EndTime, t.CreatedAt,
	)
	return types.StorageErr("trip.create", err)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StorageErr("trip.get", err)
	}
	return t, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID types.ID) ([]*Trip, error) {
	return s.query(ctx, "trip.list_by_user", `
        SELECT `+tripColumns+` FROM trips
        WHERE user_id = $1
        ORDER BY created_at DESC, seq DESC`, string(userID))
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Trip, error) {
	return s.query(ctx, "trip.list_by_driver", `
        SELECT `+tripColumns+` FROM trips
        WHERE driver_id = $1
        ORDER BY created_at DESC, seq DESC`, string(driverID))
}

func (s *PGStore) ListPendingUnassigned(ctx context.Context, limit int) ([]*Trip, error) {
	return s.query(ctx, "trip.list_pending", `
        SELECT `+tripColumns+` FROM trips
        WHERE status = 'pending' AND driver_id IS NULL
        ORDER BY seq
        LIMIT $1`, limit)
}

func (s *PGStore) Update(ctx context.Context, t *Trip, expectedVersion int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE trips
        SET status = $1,
            status_version = status_version + 1,
            driver_id = $2,
            start_time = $3,
            end_time = $4
        WHERE id = $5 AND status_version = $6`,
		string(t.Status),
		toStringPtr(t.DriverID),
		t.StartTime,
		t.EndTime,
		string(t.ID),
		expectedVersion,
	)
	if err != nil {
		return false, types.StorageErr("trip.update", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, t.ID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	row := s.db.QueryRow(ctx, `
        INSERT INTO trip_events (
            trip_id, from_status, to_status, actor_type, actor_id, driver_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`,
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		toStringPtr(e.DriverID),
		e.CreatedAt,
	)
	return types.StorageErr("trip.append_event", row.Scan(&e.ID))
}

func (s *PGStore) Events(ctx context.Context, tripID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, trip_id, from_status, to_status, actor_type, actor_id, driver_id, created_at
        FROM trip_events
        WHERE trip_id = $1
        ORDER BY id`, string(tripID))
	if err != nil {
		return nil, types.StorageErr("trip.events", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var tid, from, to string
		var actorID, driverID sql.NullString
		if err := rows.Scan(&e.ID, &tid, &from, &to, &e.ActorType, &actorID, &driverID, &e.CreatedAt); err != nil {
			return nil, types.StorageErr("trip.events", err)
		}
		e.TripID = types.ID(tid)
		e.FromStatus = Status(from)
		e.ToStatus = Status(to)
		e.ActorID = fromNullString(actorID)
		e.DriverID = fromNullString(driverID)
		out = append(out, e)
	}
	return out, types.StorageErr("trip.events", rows.Err())
}

func (s *PGStore) query(ctx context.Context, op, q string, args ...any) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, types.StorageErr(op, err)
	}
	defer rows.Close()

	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, types.StorageErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.StorageErr(op, err)
	}
	return out, nil
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var id, userID, cabTypeID, status string
	var driverID sql.NullString
	var startTime, endTime sql.NullTime

	err := row.Scan(
		&id, &userID, &driverID, &cabTypeID,
		&t.Pickup.Lat, &t.Pickup.Lng, &t.Destination.Lat, &t.Destination.Lng,
		&t.PickupAddress, &t.DestinationAddress, &t.Distance, &t.Price,
		&status, &t.StatusVersion, &startTime, &endTime, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID = types.ID(id)
	t.UserID = types.ID(userID)
	t.CabTypeID = types.ID(cabTypeID)
	t.Status = Status(status)
	t.DriverID = fromNullString(driverID)
	t.StartTime = toTimePtr(startTime)
	t.EndTime = toTimePtr(endTime)
	return &t, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func fromNullString(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
