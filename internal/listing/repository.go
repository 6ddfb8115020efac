package listing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"automarket/internal/catalog"
	"automarket/internal/currency"
	"automarket/internal/user"
)

// Repository is the storage contract of the listings table.
type Repository interface {
	Insert(ctx context.Context, l *Listing) error
	// Get and GetForUpdate return ErrNotFound for unknown ids. GetForUpdate
	// also locks the row until the unit of work ends.
	Get(ctx context.Context, id uuid.UUID) (*Listing, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Listing, error)
	// Save writes every mutable column of l.
	Save(ctx context.Context, l *Listing) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBySeller(ctx context.Context, sellerID uuid.UUID) (int, error)
	List(ctx context.Context, f Filter) ([]Listing, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]Listing, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	ResetViews(ctx context.Context, p Period) (int64, error)
	// AveragePriceUSD averages price_usd over listings of one car spec,
	// optionally restricted to a region. Invalid when nothing matches.
	AveragePriceUSD(ctx context.Context, carSpecID int64, region *Region) (decimal.NullDecimal, error)
}

// UnitOfWork groups the repositories that take part in one transaction.
type UnitOfWork interface {
	Listings() Repository
	Catalog() catalog.Repository
	Rates() currency.Repository
	Users() user.Directory
}

// Store hands out units of work. Its own UnitOfWork methods run outside any
// transaction and are meant for reads and best-effort counters.
type Store interface {
	UnitOfWork
	// Atomically runs fn in one serializable transaction. fn may be replayed
	// on conflicts, so it must not have side effects outside the unit of work.
	Atomically(ctx context.Context, fn func(uow UnitOfWork) error) error
}
