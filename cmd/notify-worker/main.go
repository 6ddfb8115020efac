// automarket notify-worker
//
// Drains the manager notification queue on Redis and delivers each intent as
// an e-mail: catalog requests to one manager, profanity alerts to the manager
// named on the intent. Failed deliveries are retried with exponential backoff
// and dead-lettered after NOTIFY_MAX_RETRIES attempts.
//
// Each process claims into its own processing list named by NOTIFY_CONSUMER
// (default: the hostname) and only requeues that list at startup. Run
// several workers with distinct, stable names; marketctl queue recover
// reclaims the list of a consumer that is gone for good.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"automarket/internal/config"
	"automarket/internal/db"
	"automarket/internal/notify"
	"automarket/internal/user"
)

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[notify-worker] Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[notify-worker] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[notify-worker] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[notify-worker] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[notify-worker] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[notify-worker] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[notify-worker] Redis connected ✓")

	queue := notify.NewRedisQueue(rdb).WithConsumer(cfg.NotifyConsumer)

	// Intents this consumer claimed before it last stopped mid-delivery.
	n, err := queue.Recover(ctx)
	if err != nil {
		log.Fatalf("[notify-worker] Recover: %v", err)
	}
	if n > 0 {
		log.Printf("[notify-worker] Requeued %d in-flight intent(s) of consumer %s", n, queue.Consumer())
	}

	// ── Mailer ───────────────────────────────────────────────────────────────
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTPHost != "" {
		smtpMailer, err := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
		if err != nil {
			log.Fatalf("[notify-worker] SMTP: %v", err)
		}
		mailer = smtpMailer
		log.Printf("[notify-worker] Delivering via SMTP %s:%s", cfg.SMTPHost, cfg.SMTPPort)
	} else {
		log.Println("[notify-worker] SMTP_HOST not set, mail is only logged")
	}

	worker := notify.NewWorker(queue, user.NewPostgresDirectory(pool), mailer, notify.WorkerConfig{
		Concurrency: cfg.NotifyWorkers,
		PerSecond:   cfg.NotifyPerSecond,
		MaxAttempts: cfg.NotifyMaxRetries,
		BaseDelay:   cfg.NotifyBaseDelay,
	})

	log.Printf("[notify-worker] Consumer %s running %d worker(s) at %.1f mail/s", queue.Consumer(), cfg.NotifyWorkers, cfg.NotifyPerSecond)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[notify-worker] Run: %v", err)
	}
	log.Println("[notify-worker] Stopped.")
}
