package listing

// HTTP handlers for the listing service.
//
// Mutating routes and statistics expect an x-user-id header forwarded by the
// gateway.
//
// Routes:
//
//	POST   /listings                      → create a listing (moderated)
//	GET    /listings                      → search listings
//	GET    /listings/{id}                 → fetch one listing, counts a view
//	PATCH  /listings/{id}                 → edit a listing (moderated)
//	DELETE /listings/{id}                 → delete a listing
//	GET    /listings/{id}/stats           → premium statistics
//	GET    /users/{id}/listings           → a seller's listings
//	POST   /users/{id}/upgrade            → move an account to premium
//	POST   /users/{id}/blacklist          → blacklist a user (managers)
//	DELETE /users/{id}/blacklist          → lift a blacklist entry (managers)
//	POST   /users/managers                → create a manager (admins)
//	GET    /catalog/brands                → brands
//	POST   /catalog/brands                → add a brand (managers)
//	GET    /catalog/brands/{id}/models    → models of a brand
//	POST   /catalog/brands/{id}/models    → add a model (managers)
//	POST   /catalog/requests              → ask managers to add a brand/model
//	GET    /currencies                    → latest exchange rates
//	GET    /regions                       → accepted regions

import (
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"automarket/internal/catalog"
	"automarket/internal/user"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts all listing-service routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.createListing)
		r.Get("/", h.listListings)
		r.Get("/{id}", h.getListing)
		r.Patch("/{id}", h.updateListing)
		r.Delete("/{id}", h.deleteListing)
		r.Get("/{id}/stats", h.listingStats)
	})
	r.Route("/users", func(r chi.Router) {
		r.Post("/managers", h.createManager)
		r.Get("/{id}/listings", h.sellerListings)
		r.Post("/{id}/upgrade", h.upgradeAccount)
		r.Post("/{id}/blacklist", h.addToBlacklist)
		r.Delete("/{id}/blacklist", h.removeFromBlacklist)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/brands", h.listBrands)
		r.Post("/brands", h.addBrand)
		r.Get("/brands/{id}/models", h.listModels)
		r.Post("/brands/{id}/models", h.addModel)
		r.Post("/requests", h.requestBrand)
	})

	r.Get("/currencies", h.currencies)
	r.Get("/regions", h.regions)
}

// ─── Listings ────────────────────────────────────────────────────────────────

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body CreateFields
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	l, err := h.svc.CreateListing(r.Context(), body, userID)
	if err != nil {
		writeError(w, "createListing", err)
		return
	}
	jsonStatus(w, http.StatusCreated, l)
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	listings, err := h.svc.ListListings(r.Context(), f)
	if err != nil {
		writeError(w, "listListings", err)
		return
	}
	jsonOK(w, listings)
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	l, err := h.svc.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, "getListing", err)
		return
	}

	// Non-fatal: counters are approximate.
	if err := h.svc.RecordView(r.Context(), id); err != nil {
		slog.Warn("record view failed", "listing", id, "err", err)
	}
	jsonOK(w, l)
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var body UpdateFields
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	l, err := h.svc.UpdateListing(r.Context(), id, body, userID)
	if err != nil {
		writeError(w, "updateListing", err)
		return
	}
	jsonOK(w, l)
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteListing(r.Context(), id, userID); err != nil {
		writeError(w, "deleteListing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listingStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.PremiumStats(r.Context(), id, userID)
	if err != nil {
		writeError(w, "listingStats", err)
		return
	}
	jsonOK(w, stats)
}

func (h *Handler) sellerListings(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := pathUUID(w, r)
	if !ok {
		return
	}

	listings, err := h.svc.ListSellerListings(r.Context(), sellerID)
	if err != nil {
		writeError(w, "sellerListings", err)
		return
	}
	jsonOK(w, listings)
}

// ─── Accounts ────────────────────────────────────────────────────────────────

func (h *Handler) upgradeAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	u, err := h.svc.UpgradeAccount(r.Context(), id, actorID)
	if err != nil {
		writeError(w, "upgradeAccount", err)
		return
	}
	jsonOK(w, u)
}

func (h *Handler) createManager(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body user.Account
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	u, err := h.svc.CreateManager(r.Context(), body, adminID)
	if err != nil {
		writeError(w, "createManager", err)
		return
	}
	jsonStatus(w, http.StatusCreated, u)
}

func (h *Handler) addToBlacklist(w http.ResponseWriter, r *http.Request) {
	managerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	entry, err := h.svc.AddToBlacklist(r.Context(), id, body.Reason, managerID)
	if err != nil {
		writeError(w, "addToBlacklist", err)
		return
	}
	jsonStatus(w, http.StatusCreated, entry)
}

func (h *Handler) removeFromBlacklist(w http.ResponseWriter, r *http.Request) {
	managerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := h.svc.RemoveFromBlacklist(r.Context(), id, managerID); err != nil {
		writeError(w, "removeFromBlacklist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Catalog and reference data ──────────────────────────────────────────────

func (h *Handler) listBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.svc.ListBrands(r.Context())
	if err != nil {
		writeError(w, "listBrands", err)
		return
	}
	jsonOK(w, brands)
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	brandID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "brand id must be an integer", http.StatusBadRequest)
		return
	}

	models, err := h.svc.ListModels(r.Context(), brandID)
	if errors.Is(err, catalog.ErrUnknownBrand) {
		jsonError(w, "brand not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "listModels", err)
		return
	}
	jsonOK(w, models)
}

func (h *Handler) addBrand(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	brand, err := h.svc.AddBrand(r.Context(), body.Name, userID)
	if err != nil {
		writeError(w, "addBrand", err)
		return
	}
	jsonStatus(w, http.StatusCreated, brand)
}

func (h *Handler) addModel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	brandID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "brand id must be an integer", http.StatusBadRequest)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	model, err := h.svc.AddModel(r.Context(), brandID, body.Name, userID)
	if errors.Is(err, catalog.ErrUnknownBrand) {
		jsonError(w, "brand not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "addModel", err)
		return
	}
	jsonStatus(w, http.StatusCreated, model)
}

func (h *Handler) requestBrand(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		BrandName string  `json:"brand_name"`
		ModelName *string `json:"model_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.svc.RequestBrand(r.Context(), body.BrandName, body.ModelName, userID); err != nil {
		writeError(w, "requestBrand", err)
		return
	}
	jsonStatus(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) currencies(w http.ResponseWriter, r *http.Request) {
	rates, err := h.svc.Currencies(r.Context())
	if err != nil {
		writeError(w, "currencies", err)
		return
	}
	jsonOK(w, rates)
}

func (h *Handler) regions(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, Regions)
}

// ─── Request parsing ─────────────────────────────────────────────────────────

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("x-user-id")
	if raw == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		jsonError(w, "invalid x-user-id header", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// parseFilter reads search parameters. Unknown parameters are ignored.
func parseFilter(q url.Values) (Filter, error) {
	var f Filter
	var err error

	if f.BrandID, err = queryInt64(q, "brand_id"); err != nil {
		return f, err
	}
	if f.ModelID, err = queryInt64(q, "model_id"); err != nil {
		return f, err
	}
	if s := q.Get("body_type"); s != "" {
		bt, err := catalog.ParseBodyType(s)
		if err != nil {
			return f, err
		}
		f.BodyType = &bt
	}
	if s := q.Get("region"); s != "" {
		region, err := ParseRegion(s)
		if err != nil {
			return f, err
		}
		f.Region = &region
	}
	if f.MinYear, err = queryInt(q, "year_min"); err != nil {
		return f, err
	}
	if f.MaxYear, err = queryInt(q, "year_max"); err != nil {
		return f, err
	}
	if f.MinPrice, err = queryDecimal(q, "price_min"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryDecimal(q, "price_max"); err != nil {
		return f, err
	}
	if s := q.Get("active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			return f, errors.New("active must be true or false")
		}
		f.Active = &active
	}

	limit, err := queryInt(q, "limit")
	if err != nil {
		return f, err
	}
	if limit != nil {
		f.Limit = *limit
	}
	offset, err := queryInt(q, "offset")
	if err != nil {
		return f, err
	}
	if offset != nil {
		if *offset < 0 {
			return f, errors.New("offset must not be negative")
		}
		f.Offset = *offset
	}
	return f, nil
}

func queryInt(q url.Values, key string) (*int, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &v, nil
}

func queryInt64(q url.Values, key string) (*int64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &v, nil
}

func queryDecimal(q url.Values, key string) (*decimal.Decimal, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.New(key + " must be a number")
	}
	return &v, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeError maps domain errors onto HTTP statuses. Moderation rejections
// carry the stored listing so clients can show the attempt counter.
func writeError(w http.ResponseWriter, op string, err error) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		jsonStatus(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   rej.Error(),
			"code":    Code(rej),
			"listing": rej.Listing,
		})
		return
	}

	switch code := Code(err); code {
	case "":
		log.Printf("[listing-service] %s error: %v", op, err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	case "not_found", "not_blacklisted":
		jsonError(w, err.Error(), http.StatusNotFound)
	case "forbidden", "blacklisted":
		jsonError(w, err.Error(), http.StatusForbidden)
	case "duplicate_brand", "duplicate_model", "duplicate_user", "already_blacklisted":
		jsonStatus(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
			"code":  code,
		})
	default:
		jsonStatus(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
			"code":  code,
		})
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}
