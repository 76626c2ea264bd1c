// README: Commission rate store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrRateNotFound = errors.New("commission rate not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, city string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT city, commission_pct::text, star_value
		FROM commission_rates
		WHERE city = $1`, city,
	)
	var r Rate
	var pct string
	err := row.Scan(&r.City, &pct, &r.StarValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, err
	}
	r.CommissionPct, err = decimal.NewFromString(pct)
	if err != nil {
		return Rate{}, err
	}
	return r, nil
}
