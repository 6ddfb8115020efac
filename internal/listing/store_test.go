package listing_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"automarket/internal/catalog"
	"automarket/internal/currency"
	"automarket/internal/listing"
	"automarket/internal/user"
)

// memState is everything a unit of work can touch.
type memState struct {
	users    map[uuid.UUID]user.User
	brands   map[int64]string
	models   map[int64]catalog.Model
	specs    []catalog.CarSpec
	rates    map[string]decimal.Decimal
	listings map[uuid.UUID]listing.Listing
	banned   map[uuid.UUID]user.BlacklistEntry
	nextID   int64
}

func (s *memState) clone() *memState {
	c := &memState{
		users:    make(map[uuid.UUID]user.User, len(s.users)),
		brands:   make(map[int64]string, len(s.brands)),
		models:   make(map[int64]catalog.Model, len(s.models)),
		specs:    append([]catalog.CarSpec(nil), s.specs...),
		rates:    make(map[string]decimal.Decimal, len(s.rates)),
		listings: make(map[uuid.UUID]listing.Listing, len(s.listings)),
		banned:   make(map[uuid.UUID]user.BlacklistEntry, len(s.banned)),
		nextID:   s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.brands {
		c.brands[k] = v
	}
	for k, v := range s.models {
		c.models[k] = v
	}
	for k, v := range s.rates {
		c.rates[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.banned {
		c.banned[k] = v
	}
	return c
}

// memStore serialises units of work behind one mutex and rolls back by
// restoring a snapshot.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// failRates makes every rate read fail.
	failRates error
	units     int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:    map[uuid.UUID]user.User{},
		brands:   map[int64]string{1: "Toyota", 2: "BMW"},
		models:   map[int64]catalog.Model{2: {ID: 2, BrandID: 1, Name: "Camry"}, 3: {ID: 3, BrandID: 1, Name: "RAV4"}, 10: {ID: 10, BrandID: 2, Name: "X5"}},
		rates:    map[string]decimal.Decimal{"USD": decimal.NewFromInt(1), "EUR": decimal.RequireFromString("0.9"), "UAH": decimal.NewFromInt(40)},
		listings: map[uuid.UUID]listing.Listing{},
		banned:   map[uuid.UUID]user.BlacklistEntry{},
		nextID:   100,
	}}
}

func (s *memStore) addUser(u user.User) user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Tier == "" {
		u.Tier = user.TierBasic
	}
	if u.Username == "" {
		u.Username = string(u.Role) + "-" + u.ID.String()[:8]
	}
	u.Email = u.Username + "@automarket.test"
	s.state.users[u.ID] = u
	return u
}

func (s *memStore) setRate(code, rate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.rates[code] = decimal.RequireFromString(rate)
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) Atomically(ctx context.Context, fn func(uow listing.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units++
	saved := s.state.clone()
	if err := fn(memUnit{s: s, inTx: true}); err != nil {
		s.state = saved
		return err
	}
	return nil
}

func (s *memStore) Listings() listing.Repository { return memUnit{s: s}.Listings() }
func (s *memStore) Catalog() catalog.Repository  { return memUnit{s: s}.Catalog() }
func (s *memStore) Rates() currency.Repository   { return memUnit{s: s}.Rates() }
func (s *memStore) Users() user.Directory        { return memUnit{s: s}.Users() }

type memUnit struct {
	s    *memStore
	inTx bool
}

// guard takes the store lock for calls made outside Atomically.
func (u memUnit) guard() func() {
	if u.inTx {
		return func() {}
	}
	u.s.mu.Lock()
	return u.s.mu.Unlock
}

func (u memUnit) Listings() listing.Repository { return memListings{u} }
func (u memUnit) Catalog() catalog.Repository  { return memCatalog{u} }
func (u memUnit) Rates() currency.Repository   { return memRates{u} }
func (u memUnit) Users() user.Directory        { return memUsers{u} }

// ─── listings ──────────────────────────────────────────────────────────────

type memListings struct{ memUnit }

func (r memListings) withSpec(l listing.Listing) listing.Listing {
	for _, sp := range r.s.state.specs {
		if sp.ID == l.CarSpecID {
			l.BrandID, l.ModelID, l.BodyType = sp.BrandID, sp.ModelID, sp.BodyType
		}
	}
	return l
}

func (r memListings) Insert(_ context.Context, l *listing.Listing) error {
	defer r.guard()()
	if _, dup := r.s.state.listings[l.ID]; dup {
		return errors.New("duplicate listing id")
	}
	r.s.state.listings[l.ID] = *l
	return nil
}

func (r memListings) Get(_ context.Context, id uuid.UUID) (*listing.Listing, error) {
	defer r.guard()()
	l, ok := r.s.state.listings[id]
	if !ok {
		return nil, listing.ErrNotFound
	}
	l = r.withSpec(l)
	return &l, nil
}

func (r memListings) GetForUpdate(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	return r.Get(ctx, id)
}

func (r memListings) Save(_ context.Context, l *listing.Listing) error {
	defer r.guard()()
	if _, ok := r.s.state.listings[l.ID]; !ok {
		return listing.ErrNotFound
	}
	r.s.state.listings[l.ID] = *l
	return nil
}

func (r memListings) Delete(_ context.Context, id uuid.UUID) error {
	defer r.guard()()
	if _, ok := r.s.state.listings[id]; !ok {
		return listing.ErrNotFound
	}
	delete(r.s.state.listings, id)
	return nil
}

func (r memListings) CountBySeller(_ context.Context, sellerID uuid.UUID) (int, error) {
	defer r.guard()()
	n := 0
	for _, l := range r.s.state.listings {
		if l.SellerID == sellerID {
			n++
		}
	}
	return n, nil
}

func (r memListings) sorted(keep func(listing.Listing) bool) []listing.Listing {
	out := make([]listing.Listing, 0)
	for _, l := range r.s.state.listings {
		l = r.withSpec(l)
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memListings) List(_ context.Context, f listing.Filter) ([]listing.Listing, error) {
	defer r.guard()()
	out := r.sorted(func(l listing.Listing) bool {
		switch {
		case f.BrandID != nil && l.BrandID != *f.BrandID,
			f.ModelID != nil && l.ModelID != *f.ModelID,
			f.BodyType != nil && l.BodyType != *f.BodyType,
			f.Region != nil && l.Region != *f.Region,
			f.MinYear != nil && l.Year < *f.MinYear,
			f.MaxYear != nil && l.Year > *f.MaxYear,
			f.MinPrice != nil && l.Price.LessThan(*f.MinPrice),
			f.MaxPrice != nil && l.Price.GreaterThan(*f.MaxPrice),
			f.Active != nil && l.Active != *f.Active:
			return false
		}
		return true
	})
	if f.Offset > len(out) {
		return []listing.Listing{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r memListings) ListBySeller(_ context.Context, sellerID uuid.UUID) ([]listing.Listing, error) {
	defer r.guard()()
	return r.sorted(func(l listing.Listing) bool { return l.SellerID == sellerID }), nil
}

func (r memListings) IncrementViews(_ context.Context, id uuid.UUID) error {
	defer r.guard()()
	l, ok := r.s.state.listings[id]
	if !ok {
		return listing.ErrNotFound
	}
	l.ViewsDay++
	l.ViewsWeek++
	l.ViewsMonth++
	r.s.state.listings[id] = l
	return nil
}

func (r memListings) ResetViews(_ context.Context, p listing.Period) (int64, error) {
	defer r.guard()()
	var n int64
	for id, l := range r.s.state.listings {
		var counter *int
		switch p {
		case listing.PeriodDay:
			counter = &l.ViewsDay
		case listing.PeriodWeek:
			counter = &l.ViewsWeek
		case listing.PeriodMonth:
			counter = &l.ViewsMonth
		default:
			return 0, errors.New("unknown period")
		}
		if *counter != 0 {
			*counter = 0
			r.s.state.listings[id] = l
			n++
		}
	}
	return n, nil
}

func (r memListings) AveragePriceUSD(_ context.Context, carSpecID int64, region *listing.Region) (decimal.NullDecimal, error) {
	defer r.guard()()
	var prices []decimal.Decimal
	for _, l := range r.s.state.listings {
		if l.CarSpecID != carSpecID || !l.PriceUSD.Valid {
			continue
		}
		if region != nil && l.Region != *region {
			continue
		}
		prices = append(prices, l.PriceUSD.Decimal)
	}
	if len(prices) == 0 {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(decimal.Avg(prices[0], prices[1:]...)), nil
}

// ─── catalog ───────────────────────────────────────────────────────────────

type memCatalog struct{ memUnit }

func (r memCatalog) BrandExists(_ context.Context, id int64) (bool, error) {
	defer r.guard()()
	_, ok := r.s.state.brands[id]
	return ok, nil
}

func (r memCatalog) ModelExistsUnderBrand(_ context.Context, modelID, brandID int64) (bool, error) {
	defer r.guard()()
	m, ok := r.s.state.models[modelID]
	return ok && m.BrandID == brandID, nil
}

func (r memCatalog) FindCarSpec(_ context.Context, brandID, modelID int64, body catalog.BodyType) (*catalog.CarSpec, error) {
	defer r.guard()()
	for _, sp := range r.s.state.specs {
		if sp.BrandID == brandID && sp.ModelID == modelID && sp.BodyType == body {
			sp := sp
			return &sp, nil
		}
	}
	return nil, nil
}

func (r memCatalog) InsertCarSpec(_ context.Context, brandID, modelID int64, body catalog.BodyType) (*catalog.CarSpec, error) {
	defer r.guard()()
	for _, sp := range r.s.state.specs {
		if sp.BrandID == brandID && sp.ModelID == modelID && sp.BodyType == body {
			return nil, nil
		}
	}
	sp := catalog.CarSpec{
		ID: int64(len(r.s.state.specs) + 1), BrandID: brandID, ModelID: modelID,
		BodyType: body, CreatedAt: time.Now(),
	}
	r.s.state.specs = append(r.s.state.specs, sp)
	return &sp, nil
}

func (r memCatalog) GetBrand(_ context.Context, id int64) (*catalog.Brand, error) {
	defer r.guard()()
	name, ok := r.s.state.brands[id]
	if !ok {
		return nil, catalog.ErrUnknownBrand
	}
	return &catalog.Brand{ID: id, Name: name}, nil
}

func (r memCatalog) ListBrands(context.Context) ([]catalog.Brand, error) {
	defer r.guard()()
	out := make([]catalog.Brand, 0, len(r.s.state.brands))
	for id, name := range r.s.state.brands {
		out = append(out, catalog.Brand{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCatalog) ListModels(_ context.Context, brandID int64) ([]catalog.Model, error) {
	defer r.guard()()
	out := make([]catalog.Model, 0)
	for _, m := range r.s.state.models {
		if m.BrandID == brandID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCatalog) AddBrand(_ context.Context, name string) (*catalog.Brand, error) {
	defer r.guard()()
	for _, taken := range r.s.state.brands {
		if taken == name {
			return nil, catalog.ErrDuplicateBrand
		}
	}
	r.s.state.nextID++
	r.s.state.brands[r.s.state.nextID] = name
	return &catalog.Brand{ID: r.s.state.nextID, Name: name}, nil
}

func (r memCatalog) AddModel(_ context.Context, brandID int64, name string) (*catalog.Model, error) {
	defer r.guard()()
	if _, ok := r.s.state.brands[brandID]; !ok {
		return nil, catalog.ErrUnknownBrand
	}
	for _, m := range r.s.state.models {
		if m.BrandID == brandID && m.Name == name {
			return nil, catalog.ErrDuplicateModel
		}
	}
	r.s.state.nextID++
	m := catalog.Model{ID: r.s.state.nextID, BrandID: brandID, Name: name}
	r.s.state.models[m.ID] = m
	return &m, nil
}

// ─── rates ─────────────────────────────────────────────────────────────────

type memRates struct{ memUnit }

func (r memRates) LatestRate(_ context.Context, code string) (decimal.Decimal, bool, error) {
	defer r.guard()()
	if r.s.failRates != nil {
		return decimal.Zero, false, r.s.failRates
	}
	v, ok := r.s.state.rates[code]
	return v, ok, nil
}

func (r memRates) LatestRates(context.Context) (map[string]decimal.Decimal, error) {
	defer r.guard()()
	if r.s.failRates != nil {
		return nil, r.s.failRates
	}
	out := make(map[string]decimal.Decimal, len(r.s.state.rates))
	for k, v := range r.s.state.rates {
		out[k] = v
	}
	return out, nil
}

func (r memRates) Save(_ context.Context, rates []currency.Rate) error {
	defer r.guard()()
	for _, rt := range rates {
		r.s.state.rates[rt.Code] = rt.Rate
	}
	return nil
}

func (r memRates) List(context.Context) ([]currency.Rate, error) {
	defer r.guard()()
	out := make([]currency.Rate, 0, len(r.s.state.rates))
	for code, rate := range r.s.state.rates {
		out = append(out, currency.Rate{Code: code, Rate: rate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ─── users ─────────────────────────────────────────────────────────────────

type memUsers struct{ memUnit }

func (r memUsers) GetUser(_ context.Context, id uuid.UUID) (*user.User, error) {
	defer r.guard()()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) ListUsersWithRole(_ context.Context, role user.Role) ([]user.User, error) {
	defer r.guard()()
	out := make([]user.User, 0)
	for _, u := range r.s.state.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) CreateUser(_ context.Context, a user.Account) (*user.User, error) {
	defer r.guard()()
	for _, u := range r.s.state.users {
		if u.Username == a.Username || u.Email == a.Email {
			return nil, user.ErrDuplicate
		}
	}
	u := user.User{ID: uuid.New(), Username: a.Username, Email: a.Email, Role: a.Role, Tier: a.Tier}
	r.s.state.users[u.ID] = u
	return &u, nil
}

func (r memUsers) SetTier(_ context.Context, id uuid.UUID, tier user.Tier) (*user.User, error) {
	defer r.guard()()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.Tier = tier
	r.s.state.users[id] = u
	return &u, nil
}

func (r memUsers) AddToBlacklist(_ context.Context, e user.BlacklistEntry) (*user.BlacklistEntry, error) {
	defer r.guard()()
	if _, ok := r.s.state.banned[e.UserID]; ok {
		return nil, user.ErrAlreadyBlacklisted
	}
	e.CreatedAt = time.Now()
	r.s.state.banned[e.UserID] = e
	return &e, nil
}

func (r memUsers) RemoveFromBlacklist(_ context.Context, id uuid.UUID) error {
	defer r.guard()()
	if _, ok := r.s.state.banned[id]; !ok {
		return user.ErrNotBlacklisted
	}
	delete(r.s.state.banned, id)
	return nil
}

func (r memUsers) IsBlacklisted(_ context.Context, id uuid.UUID) (bool, error) {
	defer r.guard()()
	_, ok := r.s.state.banned[id]
	return ok, nil
}

// ─── dispatcher ────────────────────────────────────────────────────────────

type gapCall struct {
	brand     string
	model     *string
	requester string
}

type profanityCall struct {
	description string
	requester   string
	manager     uuid.UUID
}

type recordingDispatcher struct {
	mu        sync.Mutex
	gaps      []gapCall
	profanity []profanityCall
	err       error
}

func (d *recordingDispatcher) NotifyCatalogGap(_ context.Context, brand string, model *string, requester string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gaps = append(d.gaps, gapCall{brand, model, requester})
	return d.err
}

func (d *recordingDispatcher) NotifyProfanity(_ context.Context, description, requester string, manager uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profanity = append(d.profanity, profanityCall{description, requester, manager})
	return d.err
}
