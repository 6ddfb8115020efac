// Package pricing materialises a listing price into every reference
// currency.
package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"automarket/internal/currency"
)

const (
	priceScale = 2
	rateScale  = 4
	// divScale keeps the intermediate USD amount precise enough that the
	// final 2dp rounding is the only one that matters.
	divScale = 16
)

// Prices holds a price expressed in each reference currency.
type Prices struct {
	USD decimal.Decimal `json:"usd"`
	EUR decimal.Decimal `json:"eur"`
	UAH decimal.Decimal `json:"uah"`
}

// Snapshot is what a listing stores about its price at save time.
type Snapshot struct {
	InitialRate decimal.Decimal `json:"initial_rate"`
	Derived     Prices          `json:"derived"`
}

// Convert translates price, quoted at base units per USD, into each
// reference currency using targets (also per USD). A target missing from the
// map counts as 1.
//
// A base rate that is zero or negative yields all-zero prices rather than an
// error; callers see a listing priced at 0 in every currency.
func Convert(price, base decimal.Decimal, targets map[string]decimal.Decimal) Prices {
	if !base.IsPositive() {
		return Prices{USD: decimal.Zero, EUR: decimal.Zero, UAH: decimal.Zero}
	}
	usd := price.DivRound(base, divScale)
	at := func(code string) decimal.Decimal {
		rate, ok := targets[code]
		if !ok {
			rate = decimal.NewFromInt(1)
		}
		return usd.Mul(rate).RoundBank(priceScale)
	}
	return Prices{
		USD: at(currency.USD),
		EUR: at(currency.EUR),
		UAH: at(currency.UAH),
	}
}

// Engine takes snapshots against a rate table.
type Engine struct {
	rates currency.Reader
}

// NewEngine binds an Engine to a rate reader, usually the one of the current
// unit of work.
func NewEngine(rates currency.Reader) *Engine {
	return &Engine{rates: rates}
}

// Snapshot captures the current rate of code and the derived prices of
// price. A currency with no stored rate is treated as rate 1. For unchanged
// inputs and an unchanged rate table the result is identical.
func (e *Engine) Snapshot(ctx context.Context, price decimal.Decimal, code string) (Snapshot, error) {
	base, ok, err := e.rates.LatestRate(ctx, code)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s rate: %w", code, err)
	}
	if !ok {
		base = decimal.NewFromInt(1)
	}
	if !base.IsPositive() {
		slog.Warn("non-positive base rate, derived prices set to zero", "currency", code, "rate", base.String())
	}

	targets, err := e.rates.LatestRates(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load rates: %w", err)
	}

	return Snapshot{
		InitialRate: base.RoundBank(rateScale),
		Derived:     Convert(price, base, targets),
	}, nil
}
