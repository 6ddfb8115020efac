// Package listing runs the listing pipeline: catalog resolution, price
// snapshots, profanity moderation and the operations around them.
//
// It is transport-agnostic; handler.go exposes it over HTTP.
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"automarket/internal/catalog"
	"automarket/internal/currency"
	"automarket/internal/moderation"
	"automarket/internal/notify"
	"automarket/internal/pricing"
	"automarket/internal/profanity"
	"automarket/internal/user"
)

const (
	minYear      = 1885
	maxTitleLen  = 255
	maxPriceDigs = 10 // listings.price is NUMERIC(12, 2)
	maxDerivDigs = 22 // listings.price_usd/eur/uah are NUMERIC(24, 2)
)

var (
	minEngine  = decimal.RequireFromString("0.1")
	maxEngine  = decimal.NewFromInt(20)
	maxPrice   = decimal.New(1, maxPriceDigs)
	maxDerived = decimal.New(1, maxDerivDigs)
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates the listing business logic.
type Service struct {
	store    Store
	notifier notify.Dispatcher
	filter   *profanity.Classifier
	now      func() time.Time
}

// NewService returns a Service using the built-in profanity lists.
func NewService(store Store, notifier notify.Dispatcher) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		filter:   profanity.Default(),
		now:      time.Now,
	}
}

// WithClock swaps the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ─── Create / update ─────────────────────────────────────────────────────────

// CreateListing runs the full creation pipeline for sellerID.
//
// Catalog and tier failures abort without writing anything. A profane
// description still stores the listing, inactive, and returns a
// *RejectionError wrapping ErrProfaneContent or ErrModerationLimitExceeded.
func (s *Service) CreateListing(ctx context.Context, f CreateFields, sellerID uuid.UUID) (*Listing, error) {
	in, err := s.validateCreate(f)
	if err != nil {
		return nil, err
	}

	var (
		created   *Listing
		outcome   moderation.Outcome
		requester string
		gap       bool
	)
	err = s.store.Atomically(ctx, func(uow UnitOfWork) error {
		created, requester, gap = nil, "", false

		seller, err := uow.Users().GetUser(ctx, sellerID)
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("seller %s: %w", sellerID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("getUser: %w", err)
		}
		if !seller.IsSeller() {
			return fmt.Errorf("user %s is a %s: %w", seller.ID, seller.Role, ErrForbidden)
		}
		if err := checkNotBlacklisted(ctx, uow, seller); err != nil {
			return err
		}
		requester = seller.Username

		if !seller.IsPremium() {
			n, err := uow.Listings().CountBySeller(ctx, seller.ID)
			if err != nil {
				return err
			}
			if n >= user.BasicListingLimit {
				return ErrTierLimitExceeded
			}
		}

		spec, err := catalog.Resolve(ctx, uow.Catalog(), f.BrandID, f.ModelID, f.BodyType)
		if errors.Is(err, catalog.ErrUnknownBrand) {
			gap = true
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		l := &Listing{
			ID:          uuid.New(),
			CarSpecID:   spec.ID,
			BrandID:     spec.BrandID,
			ModelID:     spec.ModelID,
			BodyType:    spec.BodyType,
			SellerID:    seller.ID,
			Title:       in.title,
			Description: f.Description,
			Year:        f.Year,
			Engine:      f.Engine,
			Price:       f.Price,
			Currency:    in.currency,
			Region:      in.region,
			Status:      moderation.StateDraft,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.reprice(ctx, uow, l, true); err != nil {
			return err
		}

		outcome, err = s.review(l, s.filter.IsProfane(l.Description))
		if err != nil {
			return err
		}
		if err := uow.Listings().Insert(ctx, l); err != nil {
			return err
		}
		created = l
		return nil
	})

	if gap {
		s.notifyCatalogGap(ctx, f, requester)
	}
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, created, outcome, f.Description, requester)
}

// UpdateListing applies an edit by editorID. Only the owning seller or a
// manager may edit. A profane description stores only the raised attempt
// counter; a clean one applies every field, re-prices the listing and makes it
// active again.
func (s *Service) UpdateListing(ctx context.Context, id uuid.UUID, f UpdateFields, editorID uuid.UUID) (*Listing, error) {
	in, err := s.validateUpdate(f)
	if err != nil {
		return nil, err
	}

	var (
		updated     *Listing
		outcome     moderation.Outcome
		locked      bool
		requester   string
		description string
	)
	err = s.store.Atomically(ctx, func(uow UnitOfWork) error {
		updated, locked, requester = nil, false, ""

		editor, err := uow.Users().GetUser(ctx, editorID)
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("editor %s unknown: %w", editorID, ErrForbidden)
		}
		if err != nil {
			return fmt.Errorf("getUser: %w", err)
		}
		if !editor.IsManager() {
			if err := checkNotBlacklisted(ctx, uow, editor); err != nil {
				return err
			}
		}

		l, err := uow.Listings().GetForUpdate(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("listing %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !canEdit(editor, l) {
			return ErrForbidden
		}
		if moderation.IsLocked(l.EditAttempts) || moderation.IsTerminal(l.Status) {
			updated, locked = l, true
			return nil
		}

		description = l.Description
		if f.Description != nil {
			description = *f.Description
		}
		profane := s.filter.IsProfane(description)

		if !profane {
			in.apply(l, f)
			if err := s.reprice(ctx, uow, l, false); err != nil {
				return err
			}
		}
		outcome, err = s.review(l, profane)
		if err != nil {
			return err
		}
		l.UpdatedAt = s.now().UTC()
		if err := uow.Listings().Save(ctx, l); err != nil {
			return err
		}

		if outcome == moderation.Rejected {
			requester = l.SellerID.String()
			if seller, err := uow.Users().GetUser(ctx, l.SellerID); err == nil {
				requester = seller.Username
			}
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, &RejectionError{Err: ErrModerationLimitExceeded, Listing: updated}
	}
	return s.settle(ctx, updated, outcome, description, requester)
}

// reprice recomputes derived prices from the current rate table. The initial
// rate is only captured on creation.
func (s *Service) reprice(ctx context.Context, uow UnitOfWork, l *Listing, initial bool) error {
	snap, err := pricing.NewEngine(uow.Rates()).Snapshot(ctx, l.Price, l.Currency)
	if err != nil {
		return err
	}
	for _, p := range []decimal.Decimal{snap.Derived.USD, snap.Derived.EUR, snap.Derived.UAH} {
		if p.GreaterThanOrEqual(maxDerived) {
			return &ValidationError{Msg: "price is too large to convert at the current exchange rates"}
		}
	}
	if initial {
		l.InitialRate = snap.InitialRate
	}
	l.PriceUSD = decimal.NewNullDecimal(snap.Derived.USD)
	l.PriceEUR = decimal.NewNullDecimal(snap.Derived.EUR)
	l.PriceUAH = decimal.NewNullDecimal(snap.Derived.UAH)
	return nil
}

// review submits l for moderation and applies the verdict.
func (s *Service) review(l *Listing, profane bool) (moderation.Outcome, error) {
	if !moderation.IsTransitionAllowed(l.Status, moderation.StatePendingReview) {
		return 0, fmt.Errorf("listing %s cannot be submitted from %s", l.ID, l.Status)
	}
	v := moderation.Review(l.EditAttempts, profane)
	if !moderation.IsTransitionAllowed(moderation.StatePendingReview, v.State) {
		return 0, fmt.Errorf("moderation produced illegal state %s", v.State)
	}
	l.Status, l.Active, l.EditAttempts = v.State, v.Active, v.EditAttempts
	return v.Outcome, nil
}

// settle turns a committed moderation outcome into the caller's result and
// sends the notifications that go with it.
func (s *Service) settle(ctx context.Context, l *Listing, outcome moderation.Outcome, description, requester string) (*Listing, error) {
	switch outcome {
	case moderation.Approved:
		return l, nil
	case moderation.Profane:
		return nil, &RejectionError{Err: ErrProfaneContent, Listing: l}
	}
	s.notifyManagers(ctx, description, requester)
	return nil, &RejectionError{Err: ErrModerationLimitExceeded, Listing: l}
}

// ─── Notifications (non-fatal) ───────────────────────────────────────────────

func (s *Service) notifyCatalogGap(ctx context.Context, f CreateFields, requester string) {
	brand := strings.TrimSpace(f.BrandName)
	if brand == "" {
		brand = fmt.Sprintf("brand #%d", f.BrandID)
	}
	if err := s.notifier.NotifyCatalogGap(ctx, brand, nil, requester); err != nil {
		slog.Warn("enqueue catalog gap notification failed", "brand", brand, "err", err)
	}
}

func (s *Service) notifyManagers(ctx context.Context, description, requester string) {
	managers, err := s.store.Users().ListUsersWithRole(ctx, user.RoleManager)
	if err != nil {
		slog.Warn("list managers failed, profanity notification skipped", "err", err)
		return
	}
	for _, m := range managers {
		if err := s.notifier.NotifyProfanity(ctx, description, requester, m.ID); err != nil {
			slog.Warn("enqueue profanity notification failed", "manager", m.ID, "err", err)
		}
	}
}

// ─── Reads and housekeeping ──────────────────────────────────────────────────

// GetListing returns a single listing.
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	l, err := s.store.Listings().Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return l, err
}

// ListListings returns listings matching f, newest first.
func (s *Service) ListListings(ctx context.Context, f Filter) ([]Listing, error) {
	if f.MinYear != nil && f.MaxYear != nil && *f.MinYear > *f.MaxYear {
		return nil, &ValidationError{Msg: "min_year must not exceed max_year"}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, &ValidationError{Msg: "price_min must not exceed price_max"}
	}
	return s.store.Listings().List(ctx, f)
}

// ListSellerListings returns every listing owned by sellerID.
func (s *Service) ListSellerListings(ctx context.Context, sellerID uuid.UUID) ([]Listing, error) {
	return s.store.Listings().ListBySeller(ctx, sellerID)
}

// DeleteListing removes a listing. Only the owning seller or a manager may
// delete it.
func (s *Service) DeleteListing(ctx context.Context, id, editorID uuid.UUID) error {
	editor, err := s.store.Users().GetUser(ctx, editorID)
	if errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("editor %s unknown: %w", editorID, ErrForbidden)
	}
	if err != nil {
		return fmt.Errorf("getUser: %w", err)
	}
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(editor, l) {
		return ErrForbidden
	}
	return s.store.Listings().Delete(ctx, id)
}

// RecordView bumps the view counters. It runs outside any transaction and may
// lose increments under contention.
func (s *Service) RecordView(ctx context.Context, id uuid.UUID) error {
	return s.store.Listings().IncrementViews(ctx, id)
}

// ResetViewCounters zeroes one view counter on every listing.
func (s *Service) ResetViewCounters(ctx context.Context, p Period) (int64, error) {
	return s.store.Listings().ResetViews(ctx, p)
}

// PremiumStats returns views and the average USD price of the same car spec
// in the listing's region and country-wide. Available to the owning premium
// seller and to managers.
func (s *Service) PremiumStats(ctx context.Context, id, viewerID uuid.UUID) (*Stats, error) {
	viewer, err := s.store.Users().GetUser(ctx, viewerID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("viewer %s unknown: %w", viewerID, ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("getUser: %w", err)
	}
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsManager() && !(viewer.ID == l.SellerID && viewer.IsPremium()) {
		return nil, fmt.Errorf("statistics need a premium account: %w", ErrForbidden)
	}

	byRegion, err := s.store.Listings().AveragePriceUSD(ctx, l.CarSpecID, &l.Region)
	if err != nil {
		return nil, err
	}
	byCountry, err := s.store.Listings().AveragePriceUSD(ctx, l.CarSpecID, nil)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalViews:            l.ViewsDay + l.ViewsWeek + l.ViewsMonth,
		ViewsDay:              l.ViewsDay,
		ViewsWeek:             l.ViewsWeek,
		ViewsMonth:            l.ViewsMonth,
		AveragePriceByRegion:  round2(byRegion),
		AveragePriceByCountry: round2(byCountry),
	}, nil
}

func round2(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.RoundBank(2))
}

// ─── Catalog ─────────────────────────────────────────────────────────────────

// ListBrands returns every brand, by name.
func (s *Service) ListBrands(ctx context.Context) ([]catalog.Brand, error) {
	return s.store.Catalog().ListBrands(ctx)
}

// ListModels returns the models of brandID.
func (s *Service) ListModels(ctx context.Context, brandID int64) ([]catalog.Model, error) {
	if _, err := s.store.Catalog().GetBrand(ctx, brandID); err != nil {
		return nil, err
	}
	return s.store.Catalog().ListModels(ctx, brandID)
}

// RequestBrand asks the managers to add a brand, and optionally a model.
func (s *Service) RequestBrand(ctx context.Context, brandName string, modelName *string, requesterID uuid.UUID) error {
	brandName = strings.TrimSpace(brandName)
	if brandName == "" {
		return &ValidationError{Msg: "brand_name is required"}
	}
	if modelName != nil && strings.TrimSpace(*modelName) == "" {
		modelName = nil
	}
	requester, err := s.store.Users().GetUser(ctx, requesterID)
	if errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("requester %s: %w", requesterID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getUser: %w", err)
	}
	return s.notifier.NotifyCatalogGap(ctx, brandName, modelName, requester.Username)
}

// Currencies returns the latest rate of every currency.
func (s *Service) Currencies(ctx context.Context) ([]currency.Rate, error) {
	return s.store.Rates().List(ctx)
}

// ─── Validation ──────────────────────────────────────────────────────────────

func canEdit(editor *user.User, l *Listing) bool {
	return editor.IsManager() || (editor.IsSeller() && editor.ID == l.SellerID)
}

func checkNotBlacklisted(ctx context.Context, uow UnitOfWork, u *user.User) error {
	listed, err := uow.Users().IsBlacklisted(ctx, u.ID)
	if err != nil {
		return err
	}
	if listed {
		return fmt.Errorf("user %s: %w", u.ID, ErrBlacklisted)
	}
	return nil
}

// normalized holds the canonical forms of validated inputs.
type normalized struct {
	title    string
	currency string
	region   Region
}

func (s *Service) validateCreate(f CreateFields) (normalized, error) {
	var n normalized
	var err error
	if n.title, err = validTitle(f.Title); err != nil {
		return n, err
	}
	if strings.TrimSpace(f.Description) == "" {
		return n, &ValidationError{Msg: "description is required"}
	}
	if err := s.validYear(f.Year); err != nil {
		return n, err
	}
	if err := validEngine(f.Engine); err != nil {
		return n, err
	}
	if err := validPrice(f.Price); err != nil {
		return n, err
	}
	if n.currency, err = currency.ParseCode(f.Currency); err != nil {
		return n, &ValidationError{Msg: err.Error()}
	}
	if n.region, err = ParseRegion(f.Region); err != nil {
		return n, &ValidationError{Msg: err.Error()}
	}
	if f.BrandID <= 0 || f.ModelID <= 0 {
		return n, &ValidationError{Msg: "brand_id and model_id are required"}
	}
	return n, nil
}

func (s *Service) validateUpdate(f UpdateFields) (normalized, error) {
	var n normalized
	var err error
	if f.Title != nil {
		if n.title, err = validTitle(*f.Title); err != nil {
			return n, err
		}
	}
	if f.Description != nil && strings.TrimSpace(*f.Description) == "" {
		return n, &ValidationError{Msg: "description must not be empty"}
	}
	if f.Year != nil {
		if err := s.validYear(*f.Year); err != nil {
			return n, err
		}
	}
	if f.Engine != nil {
		if err := validEngine(*f.Engine); err != nil {
			return n, err
		}
	}
	if f.Price != nil {
		if err := validPrice(*f.Price); err != nil {
			return n, err
		}
	}
	if f.Currency != nil {
		if n.currency, err = currency.ParseCode(*f.Currency); err != nil {
			return n, &ValidationError{Msg: err.Error()}
		}
	}
	if f.Region != nil {
		if n.region, err = ParseRegion(*f.Region); err != nil {
			return n, &ValidationError{Msg: err.Error()}
		}
	}
	return n, nil
}

// apply copies the supplied update fields onto l.
func (n normalized) apply(l *Listing, f UpdateFields) {
	if f.Title != nil {
		l.Title = n.title
	}
	if f.Description != nil {
		l.Description = *f.Description
	}
	if f.Year != nil {
		l.Year = *f.Year
	}
	if f.Engine != nil {
		l.Engine = *f.Engine
	}
	if f.Price != nil {
		l.Price = *f.Price
	}
	if f.Currency != nil {
		l.Currency = n.currency
	}
	if f.Region != nil {
		l.Region = n.region
	}
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Msg: "title is required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", &ValidationError{Msg: fmt.Sprintf("title must be at most %d characters", maxTitleLen)}
	}
	return title, nil
}

func (s *Service) validYear(year int) error {
	latest := s.now().Year()
	if year < minYear || year > latest {
		return &ValidationError{Msg: fmt.Sprintf("year must be between %d and %d", minYear, latest)}
	}
	return nil
}

func validEngine(engine decimal.Decimal) error {
	if engine.LessThan(minEngine) || engine.GreaterThan(maxEngine) {
		return &ValidationError{Msg: "engine size must be between 0.1 and 20 liters"}
	}
	if !engine.Equal(engine.Round(1)) {
		return &ValidationError{Msg: "engine size takes one decimal place"}
	}
	return nil
}

func validPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return &ValidationError{Msg: "price must be positive"}
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return &ValidationError{Msg: "price is too large"}
	}
	if !price.Equal(price.Round(2)) {
		return &ValidationError{Msg: "price takes at most two decimal places"}
	}
	return nil
}
