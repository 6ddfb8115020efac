package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"automarket/internal/db"
)

type postgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns a Repository over the brands, models and
// car_specs tables.
func NewPostgresRepository(q db.Querier) Repository {
	return &postgresRepository{q: q}
}

const specColumns = `id, brand_id, model_id, body_type, created_at`

func scanSpec(row pgx.Row) (*CarSpec, error) {
	var s CarSpec
	if err := row.Scan(&s.ID, &s.BrandID, &s.ModelID, &s.BodyType, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepository) BrandExists(ctx context.Context, brandID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM brands WHERE id = $1)`, brandID).Scan(&exists)
	return exists, err
}

func (r *postgresRepository) ModelExistsUnderBrand(ctx context.Context, modelID, brandID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM models WHERE id = $1 AND brand_id = $2)`, modelID, brandID,
	).Scan(&exists)
	return exists, err
}

func (r *postgresRepository) FindCarSpec(ctx context.Context, brandID, modelID int64, body BodyType) (*CarSpec, error) {
	s, err := scanSpec(r.q.QueryRow(ctx,
		`SELECT `+specColumns+` FROM car_specs
		 WHERE brand_id = $1 AND model_id = $2 AND body_type = $3`,
		brandID, modelID, string(body)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *postgresRepository) InsertCarSpec(ctx context.Context, brandID, modelID int64, body BodyType) (*CarSpec, error) {
	s, err := scanSpec(r.q.QueryRow(ctx,
		`INSERT INTO car_specs (brand_id, model_id, body_type)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (brand_id, model_id, body_type) DO NOTHING
		 RETURNING `+specColumns,
		brandID, modelID, string(body)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *postgresRepository) GetBrand(ctx context.Context, brandID int64) (*Brand, error) {
	var b Brand
	err := r.q.QueryRow(ctx, `SELECT id, name FROM brands WHERE id = $1`, brandID).Scan(&b.ID, &b.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownBrand
	}
	if err != nil {
		return nil, fmt.Errorf("getBrand: %w", err)
	}
	return &b, nil
}

func (r *postgresRepository) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listBrands query: %w", err)
	}
	defer rows.Close()

	brands := make([]Brand, 0)
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, fmt.Errorf("listBrands scan: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (r *postgresRepository) ListModels(ctx context.Context, brandID int64) ([]Model, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, brand_id, name FROM models WHERE brand_id = $1 ORDER BY name`, brandID)
	if err != nil {
		return nil, fmt.Errorf("listModels query: %w", err)
	}
	defer rows.Close()

	models := make([]Model, 0)
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.BrandID, &m.Name); err != nil {
			return nil, fmt.Errorf("listModels scan: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (r *postgresRepository) AddBrand(ctx context.Context, name string) (*Brand, error) {
	var b Brand
	err := r.q.QueryRow(ctx,
		`INSERT INTO brands (name) VALUES ($1) RETURNING id, name`, name,
	).Scan(&b.ID, &b.Name)
	if db.IsUniqueViolation(err) {
		return nil, ErrDuplicateBrand
	}
	if err != nil {
		return nil, fmt.Errorf("addBrand: %w", err)
	}
	return &b, nil
}

func (r *postgresRepository) AddModel(ctx context.Context, brandID int64, name string) (*Model, error) {
	var m Model
	err := r.q.QueryRow(ctx,
		`INSERT INTO models (brand_id, name) VALUES ($1, $2) RETURNING id, brand_id, name`, brandID, name,
	).Scan(&m.ID, &m.BrandID, &m.Name)
	switch {
	case db.IsUniqueViolation(err):
		return nil, ErrDuplicateModel
	case db.IsForeignKeyViolation(err):
		return nil, ErrUnknownBrand
	case err != nil:
		return nil, fmt.Errorf("addModel: %w", err)
	}
	return &m, nil
}
