// Package scheduler wires up the cron jobs that refresh exchange rates and
// reset the periodic view counters.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"automarket/internal/currency"
	"automarket/internal/listing"
)

// RateRefresher copies upstream exchange rates into storage.
type RateRefresher interface {
	Refresh(ctx context.Context) ([]currency.Rate, error)
}

// ViewResetter zeroes one view counter across all listings.
type ViewResetter interface {
	ResetViewCounters(ctx context.Context, p listing.Period) (int64, error)
}

// viewResetSpecs fire at midnight: daily, on Mondays and on the first of the
// month.
var viewResetSpecs = []struct {
	spec   string
	period listing.Period
}{
	{"0 0 * * *", listing.PeriodDay},
	{"0 0 * * 1", listing.PeriodWeek},
	{"0 0 1 * *", listing.PeriodMonth},
}

// Scheduler wraps robfig/cron and owns the periodic jobs.
type Scheduler struct {
	cron      *cron.Cron
	rates     RateRefresher
	views     ViewResetter
	rateSpecs []string
}

// New creates a Scheduler evaluating specs in loc. rateSpecs are standard
// five-field cron expressions or descriptors such as "@every 12h".
func New(rates RateRefresher, views ViewResetter, rateSpecs []string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc), cron.WithLogger(cron.DefaultLogger)),
		rates:     rates,
		views:     views,
		rateSpecs: rateSpecs,
	}
}

// Start registers the jobs and starts the scheduler. Also refreshes rates
// immediately so a fresh deployment has something to convert with.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, spec := range s.rateSpecs {
		if _, err := s.cron.AddFunc(spec, func() { s.RefreshRates(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc(%q): %w", spec, err)
		}
	}
	for _, job := range viewResetSpecs {
		period := job.period
		if _, err := s.cron.AddFunc(job.spec, func() { s.ResetViews(ctx, period) }); err != nil {
			return fmt.Errorf("cron.AddFunc(%q): %w", job.spec, err)
		}
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started: %d job(s), rate specs %v", len(s.cron.Entries()), s.rateSpecs)

	go s.RefreshRates(ctx)

	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[scheduler] Cron stopped")
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RefreshRates runs one currency refresh round.
func (s *Scheduler) RefreshRates(ctx context.Context) {
	rates, err := s.rates.Refresh(ctx)
	if err != nil {
		log.Printf("[scheduler] Rate refresh failed: %v", err)
		return
	}
	for _, r := range rates {
		log.Printf("[scheduler] Rate %s = %s", r.Code, r.Rate)
	}
}

// ResetViews zeroes the counter for period.
func (s *Scheduler) ResetViews(ctx context.Context, period listing.Period) {
	n, err := s.views.ResetViewCounters(ctx, period)
	if err != nil {
		log.Printf("[scheduler] Reset %s views failed: %v", period, err)
		return
	}
	log.Printf("[scheduler] Reset %s views on %d listing(s)", period, n)
}
