package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	httpTimeout = 15 * time.Second
	rateScale   = 6 // currency_rates.rate is NUMERIC(18, 6)
)

// PrivatBankFetcher reads the public PrivatBank cash rates. The feed quotes
// foreign currencies in UAH; Fetch rebases them onto USD.
type PrivatBankFetcher struct {
	URL    string
	client *http.Client
	now    func() time.Time
}

// NewPrivatBankFetcher constructs a fetcher with a shared HTTP client.
func NewPrivatBankFetcher(url string) *PrivatBankFetcher {
	return &PrivatBankFetcher{
		URL:    url,
		client: &http.Client{Timeout: httpTimeout},
		now:    time.Now,
	}
}

// privatRate mirrors one element of the PrivatBank JSON array.
type privatRate struct {
	Ccy     string          `json:"ccy"`
	BaseCcy string          `json:"base_ccy"`
	Buy     decimal.Decimal `json:"buy"`
	Sale    decimal.Decimal `json:"sale"`
}

// Fetch returns USD, EUR and UAH rates per 1 USD, all stamped with the same
// time. Quotes with a non-positive sale price are ignored.
func (f *PrivatBankFetcher) Fetch(ctx context.Context) ([]Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("privatbank returned %d: %s", resp.StatusCode, string(body))
	}

	var quotes []privatRate
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	// UAH per unit of each foreign currency.
	sale := make(map[string]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		if q.BaseCcy != UAH {
			continue
		}
		if !q.Sale.IsPositive() {
			slog.Warn("privatbank quote ignored", "ccy", q.Ccy, "sale", q.Sale.String())
			continue
		}
		sale[q.Ccy] = q.Sale
	}

	uahPerUSD, ok := sale[USD]
	if !ok {
		return nil, fmt.Errorf("privatbank feed has no usable %s quote", USD)
	}

	stamp := f.now().UTC().Truncate(time.Second)
	rates := []Rate{
		{Code: USD, Rate: decimal.NewFromInt(1), UpdatedAt: stamp},
		{Code: UAH, Rate: uahPerUSD.Round(rateScale), UpdatedAt: stamp},
	}
	if uahPerEUR, ok := sale[EUR]; ok {
		rates = append(rates, Rate{
			Code:      EUR,
			Rate:      uahPerUSD.DivRound(uahPerEUR, rateScale),
			UpdatedAt: stamp,
		})
	}
	return rates, nil
}
