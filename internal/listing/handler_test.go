package listing_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"automarket/internal/listing"
	"automarket/internal/user"
)

func newServer(t *testing.T) (*fixture, *httptest.Server) {
	t.Helper()
	f := newFixture()
	r := chi.NewRouter()
	listing.NewHandler(f.svc).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func do(t *testing.T, method, url, userID, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "" {
		req.Header.Set("x-user-id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var obj map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &obj); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, obj
}

const camryJSON = `{
	"brand_id": 1, "model_id": 2, "body_type": "sedan", "year": 2020,
	"engine": "2.5", "title": "Toyota Camry 2020", "description": "%s",
	"price": "20000", "currency": "USD", "region": "KYIV"
}`

func camryBody(description string) string {
	return strings.Replace(camryJSON, "%s", description, 1)
}

// ── Create ─────────────────────────────────────────────────────────────────

func TestHTTP_CreateListing(t *testing.T) {
	f, srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/listings", f.premium.ID.String(), camryBody("Clean car"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", resp.StatusCode, body)
	}
	if body["status"] != "ACTIVE" || body["active"] != true {
		t.Errorf("status/active = %v/%v, want ACTIVE/true", body["status"], body["active"])
	}
	if body["price_eur"] != "18000" {
		t.Errorf("price_eur = %v, want 18000", body["price_eur"])
	}
}

func TestHTTP_CreateListing_Errors(t *testing.T) {
	f, srv := newServer(t)
	url := srv.URL + "/listings"

	cases := []struct {
		name     string
		userID   string
		body     string
		status   int
		wantCode string
	}{
		{"missing identity", "", camryBody("Clean car"), http.StatusUnauthorized, ""},
		{"malformed identity", "seller-1", camryBody("Clean car"), http.StatusUnauthorized, ""},
		{"bad json", f.premium.ID.String(), "{", http.StatusBadRequest, ""},
		{"buyer", f.buyer.ID.String(), camryBody("Clean car"), http.StatusForbidden, ""},
		{"unknown seller", uuid.NewString(), camryBody("Clean car"), http.StatusNotFound, ""},
		{"validation", f.premium.ID.String(), camryBody(""), http.StatusUnprocessableEntity, "validation_failed"},
		{"profane", f.premium.ID.String(), camryBody("хуй collector car"), http.StatusUnprocessableEntity, "profane_content"},
	}
	for _, c := range cases {
		resp, body := do(t, http.MethodPost, url, c.userID, c.body)
		if resp.StatusCode != c.status {
			t.Errorf("%s: status = %d, want %d (%v)", c.name, resp.StatusCode, c.status, body)
			continue
		}
		if c.wantCode != "" && body["code"] != c.wantCode {
			t.Errorf("%s: code = %v, want %s", c.name, body["code"], c.wantCode)
		}
	}
}

func TestHTTP_ProfaneRejectionCarriesListing(t *testing.T) {
	f, srv := newServer(t)

	_, body := do(t, http.MethodPost, srv.URL+"/listings", f.premium.ID.String(), camryBody("хуй"))
	l, ok := body["listing"].(map[string]any)
	if !ok {
		t.Fatalf("rejection body has no listing: %v", body)
	}
	if l["edit_attempts"] != float64(1) || l["active"] != false {
		t.Errorf("listing = attempts %v active %v, want 1/false", l["edit_attempts"], l["active"])
	}
}

// ── Read / update / delete ─────────────────────────────────────────────────

func TestHTTP_ListingLifecycle(t *testing.T) {
	f, srv := newServer(t)
	owner := f.premium.ID.String()

	_, created := do(t, http.MethodPost, srv.URL+"/listings", owner, camryBody("Clean car"))
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("create returned no id: %v", created)
	}
	item := srv.URL + "/listings/" + id

	resp, got := do(t, http.MethodGet, item, "", "")
	if resp.StatusCode != http.StatusOK || got["id"] != id {
		t.Fatalf("GET = %d %v", resp.StatusCode, got)
	}

	resp, got = do(t, http.MethodPatch, item, owner, `{"title": "Camry, one owner"}`)
	if resp.StatusCode != http.StatusOK || got["title"] != "Camry, one owner" {
		t.Errorf("PATCH = %d %v", resp.StatusCode, got)
	}

	resp, got = do(t, http.MethodPatch, item, f.basic.ID.String(), `{"title": "Mine now"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign PATCH = %d %v, want 403", resp.StatusCode, got)
	}

	resp, got = do(t, http.MethodGet, item+"/stats", owner, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats = %d %v", resp.StatusCode, got)
	}
	if got["total_views"] != float64(3) {
		t.Errorf("total_views = %v, want 3 after one counted view", got["total_views"])
	}

	resp, _ = do(t, http.MethodDelete, item, owner, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, item, "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", resp.StatusCode)
	}
}

func TestHTTP_BadIDs(t *testing.T) {
	_, srv := newServer(t)

	if resp, _ := do(t, http.MethodGet, srv.URL+"/listings/not-a-uuid", "", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("GET bad id = %d, want 400", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/listings/"+uuid.NewString(), "", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET unknown id = %d, want 404", resp.StatusCode)
	}
}

func TestHTTP_Search(t *testing.T) {
	f, srv := newServer(t)
	do(t, http.MethodPost, srv.URL+"/listings", f.premium.ID.String(), camryBody("Clean car"))
	do(t, http.MethodPost, srv.URL+"/listings", f.premium.ID.String(), camryBody("хуй"))

	var all []map[string]any
	resp, err := http.Get(srv.URL + "/listings?active=true&body_type=sedan&region=kyiv")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("active sedans = %d, want 1", len(all))
	}

	for _, q := range []string{"year_min=abc", "active=maybe", "body_type=tank", "price_max=lots"} {
		if resp, _ := do(t, http.MethodGet, srv.URL+"/listings?"+q, "", ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("?%s = %d, want 400", q, resp.StatusCode)
		}
	}
	if resp, body := do(t, http.MethodGet, srv.URL+"/listings?year_min=2020&year_max=2000", "", ""); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("inverted range = %d %v, want 422", resp.StatusCode, body)
	}
}

// ── Catalog and reference data ─────────────────────────────────────────────

func TestHTTP_Catalog(t *testing.T) {
	f, srv := newServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/catalog/brands/1/models", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("models of known brand = %d, want 200", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/catalog/brands/99/models", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("models of unknown brand = %d, want 404", resp.StatusCode)
	}

	resp, body := do(t, http.MethodPost, srv.URL+"/catalog/requests", f.buyer.ID.String(), `{"brand_name": "Rivian", "model_name": "R1S"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("brand request = %d %v, want 202", resp.StatusCode, body)
	}
	if len(f.notifier.gaps) != 1 || f.notifier.gaps[0].brand != "Rivian" {
		t.Errorf("gaps = %+v, want one Rivian request", f.notifier.gaps)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/catalog/requests", f.buyer.ID.String(), `{"brand_name": ""}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty brand request = %d, want 422", resp.StatusCode)
	}
}

func TestHTTP_ReferenceData(t *testing.T) {
	_, srv := newServer(t)

	for _, path := range []string{"/currencies", "/regions", "/catalog/brands"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		var items []any
		err = json.NewDecoder(resp.Body).Decode(&items)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || err != nil || len(items) == 0 {
			t.Errorf("GET %s = %d, %d items, err %v", path, resp.StatusCode, len(items), err)
		}
	}
}

// ── Administration ─────────────────────────────────────────────────────────

func TestHTTP_CatalogMaintenance(t *testing.T) {
	f, srv := newServer(t)
	manager := f.managers[0].ID.String()

	resp, body := do(t, http.MethodPost, srv.URL+"/catalog/brands", manager, `{"name": "Rivian"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add brand = %d %v, want 201", resp.StatusCode, body)
	}
	brandID := int64(body["id"].(float64))

	cases := []struct {
		name, path, user, body string
		want                   int
	}{
		{"duplicate brand", "/catalog/brands", manager, `{"name": "Rivian"}`, http.StatusConflict},
		{"seller adds brand", "/catalog/brands", f.premium.ID.String(), `{"name": "Lucid"}`, http.StatusForbidden},
		{"blank brand", "/catalog/brands", manager, `{"name": ""}`, http.StatusUnprocessableEntity},
		{"add model", fmt.Sprintf("/catalog/brands/%d/models", brandID), manager, `{"name": "R1S"}`, http.StatusCreated},
		{"duplicate model", fmt.Sprintf("/catalog/brands/%d/models", brandID), manager, `{"name": "R1S"}`, http.StatusConflict},
		{"model of unknown brand", "/catalog/brands/999/models", manager, `{"name": "R1T"}`, http.StatusNotFound},
		{"no user", "/catalog/brands", "", `{"name": "Lucid"}`, http.StatusUnauthorized},
	}
	for _, c := range cases {
		if resp, body := do(t, http.MethodPost, srv.URL+c.path, c.user, c.body); resp.StatusCode != c.want {
			t.Errorf("%s: status = %d %v, want %d", c.name, resp.StatusCode, body, c.want)
		}
	}
}

func TestHTTP_Accounts(t *testing.T) {
	f, srv := newServer(t)
	admin := f.store.addUser(user.User{Username: "root", Role: user.RoleAdmin})
	manager := f.managers[0].ID.String()
	seller := f.basic.ID.String()

	resp, body := do(t, http.MethodPost, srv.URL+"/users/"+seller+"/upgrade", seller, "")
	if resp.StatusCode != http.StatusOK || body["tier"] != "premium" {
		t.Errorf("upgrade = %d %v, want 200 premium", resp.StatusCode, body)
	}

	newManager := `{"username": "olena", "email": "olena@automarket.test"}`
	resp, body = do(t, http.MethodPost, srv.URL+"/users/managers", admin.ID.String(), newManager)
	if resp.StatusCode != http.StatusCreated || body["role"] != "manager" {
		t.Errorf("create manager = %d %v, want 201 manager", resp.StatusCode, body)
	}
	if resp, _ := do(t, http.MethodPost, srv.URL+"/users/managers", admin.ID.String(), newManager); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate manager = %d, want 409", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodPost, srv.URL+"/users/managers", manager, `{"username": "x", "email": "x@y.co"}`); resp.StatusCode != http.StatusForbidden {
		t.Errorf("manager creating manager = %d, want 403", resp.StatusCode)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/users/"+seller+"/blacklist", manager, `{"reason": "spam"}`)
	if resp.StatusCode != http.StatusCreated || body["reason"] != "spam" {
		t.Errorf("blacklist = %d %v, want 201", resp.StatusCode, body)
	}
	if resp, _ := do(t, http.MethodPost, srv.URL+"/users/"+seller+"/blacklist", manager, `{}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("second blacklist = %d, want 409", resp.StatusCode)
	}
	resp, body = do(t, http.MethodPost, srv.URL+"/listings", seller, camryBody("Clean car"))
	if resp.StatusCode != http.StatusForbidden || body["code"] != nil {
		t.Errorf("blacklisted create = %d %v, want 403", resp.StatusCode, body)
	}

	if resp, _ := do(t, http.MethodDelete, srv.URL+"/users/"+seller+"/blacklist", manager, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("lift blacklist = %d, want 204", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodDelete, srv.URL+"/users/"+seller+"/blacklist", manager, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("lift absent entry = %d, want 404", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodPost, srv.URL+"/listings", seller, camryBody("Clean car")); resp.StatusCode != http.StatusCreated {
		t.Errorf("create after lift = %d, want 201", resp.StatusCode)
	}
}
