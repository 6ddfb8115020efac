// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration shared by every automarket process.
type Config struct {
	HTTPPort    string
	GRPCPort    string
	DatabaseURL string
	RedisURL    string

	// Scheduler
	RateRefreshSpecs []string // cron specs for the currency refresh job
	PrivatBankURL    string
	Timezone         string

	// Notify worker
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	MailFrom         string
	NotifyWorkers    int
	NotifyPerSecond  float64
	NotifyMaxRetries int
	NotifyBaseDelay  time.Duration
	// NotifyConsumer names this worker's in-flight list. It must be unique
	// among running workers and stable across restarts of the same one.
	NotifyConsumer string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	// Silently ignored when the file is missing.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	workers, err := getEnvInt("NOTIFY_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("NOTIFY_WORKERS must be a positive integer, got %d", workers)
	}

	maxRetries, err := getEnvInt("NOTIFY_MAX_RETRIES", 5)
	if err != nil {
		return nil, err
	}

	perSecond := 5.0
	if s := os.Getenv("NOTIFY_PER_SECOND"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("NOTIFY_PER_SECOND must be a positive number, got %q", s)
		}
		perSecond = v
	}

	baseDelay := 2 * time.Second
	if s := os.Getenv("NOTIFY_BASE_DELAY"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("NOTIFY_BASE_DELAY: %w", err)
		}
		baseDelay = d
	}

	consumer := os.Getenv("NOTIFY_CONSUMER")
	if consumer == "" {
		if consumer, err = os.Hostname(); err != nil || consumer == "" {
			consumer = "notify-worker"
		}
	}

	return &Config{
		HTTPPort:    getEnv("LISTING_PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		DatabaseURL: dbURL,
		RedisURL:    redisURL,

		// 00:01 and a noon retry, as the rates provider publishes once a day.
		RateRefreshSpecs: []string{
			getEnv("RATE_REFRESH_SPEC", "1 0 * * *"),
			getEnv("RATE_RETRY_SPEC", "0 12 * * *"),
		},
		PrivatBankURL: getEnv("PRIVATBANK_URL", "https://api.privatbank.ua/p24api/pubinfo?json&exchange&coursid=5"),
		Timezone:      getEnv("SCHEDULER_TZ", "Europe/Kyiv"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		MailFrom:         getEnv("MAIL_FROM", "noreply@automarket.local"),
		NotifyWorkers:    workers,
		NotifyPerSecond:  perSecond,
		NotifyMaxRetries: maxRetries,
		NotifyBaseDelay:  baseDelay,
		NotifyConsumer:   consumer,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return v, nil
}
