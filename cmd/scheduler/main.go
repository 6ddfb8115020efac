// automarket scheduler
//
// Cron process: refreshes exchange rates from PrivatBank (00:01 and 12:00 by
// default, plus once at start) and resets the daily, weekly and monthly view
// counters at midnight.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"automarket/internal/config"
	"automarket/internal/currency"
	"automarket/internal/db"
	"automarket/internal/listing"
	"automarket/internal/scheduler"
)

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[scheduler] Config error: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("[scheduler] Timezone %q: %v", cfg.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[scheduler] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[scheduler] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[scheduler] PostgreSQL connected ✓")

	// ── Jobs ─────────────────────────────────────────────────────────────────
	refresher := currency.NewRefresher(
		currency.NewPrivatBankFetcher(cfg.PrivatBankURL),
		currency.NewPostgresRepository(pool),
	)
	svc := listing.NewService(listing.NewPostgresStore(pool), nil)

	s := scheduler.New(refresher, svc, cfg.RateRefreshSpecs, loc)
	if err := s.Start(ctx); err != nil {
		log.Fatalf("[scheduler] Start: %v", err)
	}

	<-ctx.Done()
	log.Println("[scheduler] Shutting down…")
	s.Stop()
	log.Println("[scheduler] Stopped.")
}
