package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"automarket/internal/db"
)

type postgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns a Repository over the currency_rates table.
// q may be a pool or a transaction.
func NewPostgresRepository(q db.Querier) Repository {
	return &postgresRepository{q: q}
}

func (r *postgresRepository) LatestRate(ctx context.Context, code string) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT rate FROM currency_rates
		WHERE currency_code = $1
		ORDER BY updated_at DESC
		LIMIT 1`, code,
	).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("latestRate %s: %w", code, err)
	}
	return rate, true, nil
}

func (r *postgresRepository) LatestRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	rates, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rates))
	for _, rt := range rates {
		out[rt.Code] = rt.Rate
	}
	return out, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Rate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT ON (currency_code) currency_code, rate, updated_at
		FROM currency_rates
		ORDER BY currency_code, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listRates query: %w", err)
	}
	defer rows.Close()

	rates := make([]Rate, 0, len(Supported))
	for rows.Next() {
		var rt Rate
		if err := rows.Scan(&rt.Code, &rt.Rate, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("listRates scan: %w", err)
		}
		rates = append(rates, rt)
	}
	return rates, rows.Err()
}

// Save writes the whole batch in a single statement, so a partial refresh is
// never visible.
func (r *postgresRepository) Save(ctx context.Context, rates []Rate) error {
	if len(rates) == 0 {
		return nil
	}
	values := make([]string, 0, len(rates))
	args := make([]any, 0, 3*len(rates))
	for i, rt := range rates {
		n := 3 * i
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", n+1, n+2, n+3))
		args = append(args, rt.Code, rt.Rate, rt.UpdatedAt)
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO currency_rates (currency_code, rate, updated_at)
		VALUES `+strings.Join(values, ", ")+`
		ON CONFLICT (currency_code, updated_at) DO UPDATE SET rate = EXCLUDED.rate`,
		args...)
	if err != nil {
		return fmt.Errorf("saveRates: %w", err)
	}
	return nil
}
