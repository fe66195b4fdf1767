// README: Cab type stores; PostgreSQL via pgx.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridequick/internal/types"
)

type Store interface {
	Create(ctx context.Context, c CabType) error
	Get(ctx context.Context, id types.ID) (CabType, error)
	// List returns cab types ordered by base price.
	List(ctx context.Context) ([]CabType, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, c CabType) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO cab_types (id, name, description, base_price, price_per_km, seating_capacity)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Name, c.Description, c.BasePrice, c.PricePerKm, c.SeatingCapacity,
	)
	if err != nil {
		return types.StorageErr("cab_type.create", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (CabType, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, base_price, price_per_km, seating_capacity
		FROM cab_types WHERE id = $1`, id)
	c, err := scanCabType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CabType{}, ErrCabTypeNotFound
	}
	if err != nil {
		return CabType{}, types.StorageErr("cab_type.get", err)
	}
	return c, nil
}

func (s *PGStore) List(ctx context.Context) ([]CabType, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, base_price, price_per_km, seating_capacity
		FROM cab_types ORDER BY base_price, name`)
	if err != nil {
		return nil, types.StorageErr("cab_type.list", err)
	}
	defer rows.Close()

	var out []CabType
	for rows.Next() {
		c, err := scanCabType(rows)
		if err != nil {
			return nil, types.StorageErr("cab_type.scan", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.StorageErr("cab_type.list", err)
	}
	return out, nil
}

func scanCabType(row pgx.Row) (CabType, error) {
	var c CabType
	var id string
	if err := row.Scan(&id, &c.Name, &c.Description, &c.BasePrice, &c.PricePerKm, &c.SeatingCapacity); err != nil {
		return CabType{}, err
	}
	c.ID = types.ID(id)
	return c, nil
}
