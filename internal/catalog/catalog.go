// Package catalog owns brands, models and the car specifications listings
// point at.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// BodyType is the closed set of car body styles.
type BodyType string

const (
	BodySedan       BodyType = "sedan"
	BodyHatchback   BodyType = "hatchback"
	BodySUV         BodyType = "suv"
	BodyWagon       BodyType = "wagon"
	BodyCoupe       BodyType = "coupe"
	BodyConvertible BodyType = "convertible"
	BodyMinivan     BodyType = "minivan"
	BodyPickup      BodyType = "pickup"
)

// BodyTypes lists every BodyType in display order.
var BodyTypes = []BodyType{
	BodySedan, BodyHatchback, BodySUV, BodyWagon,
	BodyCoupe, BodyConvertible, BodyMinivan, BodyPickup,
}

var (
	ErrUnknownBrand    = errors.New("brand does not exist")
	ErrUnknownModel    = errors.New("model does not exist under this brand")
	ErrInvalidBodyType = errors.New("invalid body type")
	ErrDuplicateBrand  = errors.New("brand already exists")
	ErrDuplicateModel  = errors.New("model already exists under this brand")
)

// MaxNameLength bounds brand and model names.
const MaxNameLength = 50

// ParseBodyType accepts any letter case.
func ParseBodyType(s string) (BodyType, error) {
	b := BodyType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range BodyTypes {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBodyType, s)
}

// NormalizeName trims a brand or model name and checks its length.
func NormalizeName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%s name is required", kind)
	case utf8.RuneCountInString(name) > MaxNameLength:
		return "", fmt.Errorf("%s name must be at most %d characters", kind, MaxNameLength)
	}
	return name, nil
}

type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Model struct {
	ID      int64  `json:"id"`
	BrandID int64  `json:"brand_id"`
	Name    string `json:"name"`
}

// CarSpec is a normalised (brand, model, body type) triple. It is created the
// first time a listing references the combination and never deleted here.
type CarSpec struct {
	ID        int64     `json:"id"`
	BrandID   int64     `json:"brand_id"`
	ModelID   int64     `json:"model_id"`
	BodyType  BodyType  `json:"body_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the storage contract of the catalog.
type Repository interface {
	BrandExists(ctx context.Context, brandID int64) (bool, error)
	ModelExistsUnderBrand(ctx context.Context, modelID, brandID int64) (bool, error)
	// FindCarSpec returns nil, nil when the triple has no row yet.
	FindCarSpec(ctx context.Context, brandID, modelID int64, body BodyType) (*CarSpec, error)
	// InsertCarSpec returns nil, nil when another writer already holds the
	// triple.
	InsertCarSpec(ctx context.Context, brandID, modelID int64, body BodyType) (*CarSpec, error)
	GetBrand(ctx context.Context, brandID int64) (*Brand, error)
	ListBrands(ctx context.Context) ([]Brand, error)
	ListModels(ctx context.Context, brandID int64) ([]Model, error)
	// AddBrand returns ErrDuplicateBrand when the name is taken.
	AddBrand(ctx context.Context, name string) (*Brand, error)
	// AddModel returns ErrUnknownBrand or ErrDuplicateModel.
	AddModel(ctx context.Context, brandID int64, name string) (*Model, error)
}
