// Package currency stores exchange rates and keeps them fresh.
//
// Rates are expressed as units of the currency per 1 USD, so USD is always 1.
// Every refresh appends a new row per code; readers use the latest one.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	USD = "USD"
	EUR = "EUR"
	UAH = "UAH"
)

// Supported lists the currencies a listing may be priced in.
var Supported = []string{USD, EUR, UAH}

// ErrUnsupportedCurrency is returned by ParseCode for unknown codes.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Rate is one observation of a currency against USD.
type Rate struct {
	Code      string          `json:"currency_code"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ParseCode upper-cases s and checks it against Supported.
func ParseCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	for _, c := range Supported {
		if c == code {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
}

// Reader is the read side used by the pricing engine.
type Reader interface {
	// LatestRate returns the most recent rate for code. ok is false when the
	// table holds no row for it.
	LatestRate(ctx context.Context, code string) (rate decimal.Decimal, ok bool, err error)
	LatestRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Writer persists a batch of rates.
type Writer interface {
	Save(ctx context.Context, rates []Rate) error
}

// Repository is the full currency_rates table contract.
type Repository interface {
	Reader
	Writer
	// List returns the latest rate per code, ordered by code.
	List(ctx context.Context) ([]Rate, error)
}
