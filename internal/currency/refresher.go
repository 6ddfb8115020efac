package currency

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Fetcher pulls a fresh set of rates from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Rate, error)
}

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Minute
)

// Refresher copies upstream rates into the store, retrying failed rounds with
// exponential backoff.
type Refresher struct {
	fetcher   Fetcher
	store     Writer
	attempts  int
	baseDelay time.Duration
}

// NewRefresher returns a Refresher with 3 attempts, starting at a one-minute
// backoff.
func NewRefresher(fetcher Fetcher, store Writer) *Refresher {
	return &Refresher{
		fetcher:   fetcher,
		store:     store,
		attempts:  defaultAttempts,
		baseDelay: defaultBaseDelay,
	}
}

// WithBackoff overrides the retry policy.
func (r *Refresher) WithBackoff(attempts int, baseDelay time.Duration) *Refresher {
	if attempts < 1 {
		attempts = 1
	}
	r.attempts = attempts
	r.baseDelay = baseDelay
	return r
}

// Refresh fetches and saves one round of rates. It returns the rates that
// were saved, or the last error once every attempt has failed.
func (r *Refresher) Refresh(ctx context.Context) ([]Rate, error) {
	var err error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var rates []Rate
		rates, err = r.refreshOnce(ctx)
		if err == nil {
			return rates, nil
		}
		if attempt == r.attempts {
			break
		}
		slog.Warn("currency refresh failed, retrying", "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("currency refresh failed after %d attempts: %w", r.attempts, err)
}

func (r *Refresher) refreshOnce(ctx context.Context) ([]Rate, error) {
	rates, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if err := r.store.Save(ctx, rates); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return rates, nil
}
