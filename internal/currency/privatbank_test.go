package currency_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"automarket/internal/currency"
)

const privatFeed = `[
	{"ccy":"EUR","base_ccy":"UAH","buy":"44.00000","sale":"45.00000"},
	{"ccy":"USD","base_ccy":"UAH","buy":"39.50000","sale":"40.00000"}
]`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func byCode(rates []currency.Rate) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rates))
	for _, r := range rates {
		out[r.Code] = r.Rate
	}
	return out
}

// ── Fetch ──────────────────────────────────────────────────────────────────

func TestFetch_RebasesOntoUSD(t *testing.T) {
	srv := serve(t, http.StatusOK, privatFeed)

	rates, err := currency.NewPrivatBankFetcher(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	got := byCode(rates)

	want := map[string]string{
		"USD": "1",
		"UAH": "40",
		"EUR": "0.888889", // 40 / 45
	}
	for code, w := range want {
		r, ok := got[code]
		if !ok {
			t.Errorf("Fetch() missing %s", code)
			continue
		}
		if !r.Equal(decimal.RequireFromString(w)) {
			t.Errorf("rate[%s] = %s, want %s", code, r, w)
		}
	}

	stamp := rates[0].UpdatedAt
	for _, r := range rates {
		if !r.UpdatedAt.Equal(stamp) {
			t.Errorf("rate[%s].UpdatedAt = %v, want %v (one stamp per round)", r.Code, r.UpdatedAt, stamp)
		}
	}
}

func TestFetch_SkipsNonPositiveSale(t *testing.T) {
	srv := serve(t, http.StatusOK, `[
		{"ccy":"EUR","base_ccy":"UAH","buy":"0","sale":"0"},
		{"ccy":"USD","base_ccy":"UAH","buy":"39.5","sale":"40"}
	]`)

	rates, err := currency.NewPrivatBankFetcher(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if _, ok := byCode(rates)["EUR"]; ok {
		t.Error("Fetch() kept EUR with a zero sale price")
	}
	if len(rates) != 2 {
		t.Errorf("Fetch() returned %d rates, want 2 (USD, UAH)", len(rates))
	}
}

func TestFetch_MissingUSD(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"ccy":"EUR","base_ccy":"UAH","buy":"44","sale":"45"}]`)
	if _, err := currency.NewPrivatBankFetcher(srv.URL).Fetch(context.Background()); err == nil {
		t.Error("Fetch() without a USD quote expected error, got nil")
	}
}

func TestFetch_UpstreamError(t *testing.T) {
	srv := serve(t, http.StatusServiceUnavailable, `maintenance`)
	if _, err := currency.NewPrivatBankFetcher(srv.URL).Fetch(context.Background()); err == nil {
		t.Error("Fetch() on HTTP 503 expected error, got nil")
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"not":"an array"}`)
	if _, err := currency.NewPrivatBankFetcher(srv.URL).Fetch(context.Background()); err == nil {
		t.Error("Fetch() on malformed JSON expected error, got nil")
	}
}

// ── ParseCode ──────────────────────────────────────────────────────────────

func TestParseCode(t *testing.T) {
	for _, s := range []string{"USD", "eur", " uah "} {
		if _, err := currency.ParseCode(s); err != nil {
			t.Errorf("ParseCode(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"", "GBP", "US D"} {
		if _, err := currency.ParseCode(s); err == nil {
			t.Errorf("ParseCode(%q) expected error, got nil", s)
		}
	}
}
