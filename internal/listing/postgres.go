package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"automarket/internal/catalog"
	"automarket/internal/currency"
	"automarket/internal/db"
	"automarket/internal/moderation"
	"automarket/internal/user"
)

// ─── Store ───────────────────────────────────────────────────────────────────

// PostgresStore runs units of work against a pgx pool.
type PostgresStore struct {
	pgUnit
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgUnit: pgUnit{q: pool}, pool: pool}
}

func (s *PostgresStore) Atomically(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return db.Serializable(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgUnit{q: tx})
	})
}

type pgUnit struct {
	q db.Querier
}

func (u pgUnit) Listings() Repository        { return &postgresRepository{q: u.q} }
func (u pgUnit) Catalog() catalog.Repository { return catalog.NewPostgresRepository(u.q) }
func (u pgUnit) Rates() currency.Repository  { return currency.NewPostgresRepository(u.q) }
func (u pgUnit) Users() user.Directory       { return user.NewPostgresDirectory(u.q) }

// ─── Repository ──────────────────────────────────────────────────────────────

type postgresRepository struct {
	q db.Querier
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

const selectListing = `
	SELECT l.id, l.car_spec_id, cs.brand_id, cs.model_id, cs.body_type, l.seller_id,
	       l.title, l.description, l.year, l.engine, l.price, l.currency_code,
	       l.initial_rate, l.price_usd, l.price_eur, l.price_uah,
	       l.region, l.status, l.active, l.edit_attempts,
	       l.views_day, l.views_week, l.views_month, l.created_at, l.updated_at
	FROM listings l
	JOIN car_specs cs ON cs.id = l.car_spec_id`

// scanListing rejects moderation states the application does not know.
func scanListing(row pgx.Row) (*Listing, error) {
	var (
		l      Listing
		status string
	)
	err := row.Scan(
		&l.ID, &l.CarSpecID, &l.BrandID, &l.ModelID, &l.BodyType, &l.SellerID,
		&l.Title, &l.Description, &l.Year, &l.Engine, &l.Price, &l.Currency,
		&l.InitialRate, &l.PriceUSD, &l.PriceEUR, &l.PriceUAH,
		&l.Region, &status, &l.Active, &l.EditAttempts,
		&l.ViewsDay, &l.ViewsWeek, &l.ViewsMonth, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if l.Status, err = moderation.ParseState(status); err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.ID, err)
	}
	return &l, nil
}

func (r *postgresRepository) collect(rows pgx.Rows, op string) ([]Listing, error) {
	defer rows.Close()
	out := make([]Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *postgresRepository) Insert(ctx context.Context, l *Listing) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO listings (
		   id, car_spec_id, seller_id, title, description, year, engine,
		   price, currency_code, initial_rate, price_usd, price_eur, price_uah,
		   region, status, active, edit_attempts, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		l.ID, l.CarSpecID, l.SellerID, l.Title, l.Description, l.Year, l.Engine,
		l.Price, l.Currency, l.InitialRate, l.PriceUSD, l.PriceEUR, l.PriceUAH,
		string(l.Region), string(l.Status), l.Active, l.EditAttempts, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insertListing: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Listing, error) {
	l, err := scanListing(r.q.QueryRow(ctx, selectListing+` WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getListing: %w", err)
	}
	return l, nil
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Listing, error) {
	l, err := scanListing(r.q.QueryRow(ctx, selectListing+` WHERE l.id = $1 FOR UPDATE OF l`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getListingForUpdate: %w", err)
	}
	return l, nil
}

func (r *postgresRepository) Save(ctx context.Context, l *Listing) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE listings
		 SET title         = $2,
		     description   = $3,
		     year          = $4,
		     engine        = $5,
		     price         = $6,
		     currency_code = $7,
		     initial_rate  = $8,
		     price_usd     = $9,
		     price_eur     = $10,
		     price_uah     = $11,
		     region        = $12,
		     status        = $13,
		     active        = $14,
		     edit_attempts = $15,
		     updated_at    = $16
		 WHERE id = $1`,
		l.ID, l.Title, l.Description, l.Year, l.Engine, l.Price, l.Currency,
		l.InitialRate, l.PriceUSD, l.PriceEUR, l.PriceUAH,
		string(l.Region), string(l.Status), l.Active, l.EditAttempts, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saveListing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleteListing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE seller_id = $1`, sellerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("countBySeller: %w", err)
	}
	return n, nil
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]Listing, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BrandID != nil {
		add("cs.brand_id = $%d", *f.BrandID)
	}
	if f.ModelID != nil {
		add("cs.model_id = $%d", *f.ModelID)
	}
	if f.BodyType != nil {
		add("cs.body_type = $%d", string(*f.BodyType))
	}
	if f.Region != nil {
		add("l.region = $%d", string(*f.Region))
	}
	if f.MinYear != nil {
		add("l.year >= $%d", *f.MinYear)
	}
	if f.MaxYear != nil {
		add("l.year <= $%d", *f.MaxYear)
	}
	if f.MinPrice != nil {
		add("l.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("l.price <= $%d", *f.MaxPrice)
	}
	if f.Active != nil {
		add("l.active = $%d", *f.Active)
	}

	query := selectListing
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY l.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listListings query: %w", err)
	}
	return r.collect(rows, "listListings")
}

func (r *postgresRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]Listing, error) {
	rows, err := r.q.Query(ctx, selectListing+` WHERE l.seller_id = $1 ORDER BY l.created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listBySeller query: %w", err)
	}
	return r.collect(rows, "listBySeller")
}

func (r *postgresRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE listings
		 SET views_day   = views_day + 1,
		     views_week  = views_week + 1,
		     views_month = views_month + 1
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("incrementViews: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ResetViews(ctx context.Context, p Period) (int64, error) {
	var column string
	switch p {
	case PeriodDay:
		column = "views_day"
	case PeriodWeek:
		column = "views_week"
	case PeriodMonth:
		column = "views_month"
	default:
		return 0, fmt.Errorf("resetViews: unknown period %q", p)
	}
	tag, err := r.q.Exec(ctx, `UPDATE listings SET `+column+` = 0 WHERE `+column+` <> 0`)
	if err != nil {
		return 0, fmt.Errorf("resetViews %s: %w", p, err)
	}
	return tag.RowsAffected(), nil
}

func (r *postgresRepository) AveragePriceUSD(ctx context.Context, carSpecID int64, region *Region) (decimal.NullDecimal, error) {
	query := `SELECT AVG(price_usd) FROM listings WHERE car_spec_id = $1 AND price_usd IS NOT NULL`
	args := []any{carSpecID}
	if region != nil {
		query += ` AND region = $2`
		args = append(args, string(*region))
	}
	var avg decimal.NullDecimal
	if err := r.q.QueryRow(ctx, query, args...).Scan(&avg); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("averagePriceUSD: %w", err)
	}
	return avg, nil
}
