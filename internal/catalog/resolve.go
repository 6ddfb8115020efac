package catalog

import (
	"context"
	"fmt"
)

// maxResolveAttempts bounds the read → insert → re-read loop.
const maxResolveAttempts = 3

// Resolve validates the triple and returns its CarSpec, creating it when
// missing. Uniqueness comes from the car_specs unique index: a writer that
// loses the insert race reads the winner's row.
func Resolve(ctx context.Context, repo Repository, brandID, modelID int64, body string) (*CarSpec, error) {
	bodyType, err := ParseBodyType(body)
	if err != nil {
		return nil, err
	}

	ok, err := repo.BrandExists(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("brandExists: %w", err)
	}
	if !ok {
		return nil, ErrUnknownBrand
	}

	ok, err = repo.ModelExistsUnderBrand(ctx, modelID, brandID)
	if err != nil {
		return nil, fmt.Errorf("modelExistsUnderBrand: %w", err)
	}
	if !ok {
		return nil, ErrUnknownModel
	}

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		spec, err := repo.FindCarSpec(ctx, brandID, modelID, bodyType)
		if err != nil {
			return nil, fmt.Errorf("findCarSpec: %w", err)
		}
		if spec != nil {
			return spec, nil
		}

		spec, err = repo.InsertCarSpec(ctx, brandID, modelID, bodyType)
		if err != nil {
			return nil, fmt.Errorf("insertCarSpec: %w", err)
		}
		if spec != nil {
			return spec, nil
		}
	}
	return nil, fmt.Errorf("car spec (%d, %d, %s) not visible after %d attempts",
		brandID, modelID, bodyType, maxResolveAttempts)
}
