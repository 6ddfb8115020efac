package config_test

import (
	"os"
	"testing"
	"time"

	"automarket/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/automarket")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := config.Load(); err == nil {
		t.Error("Load() without DATABASE_URL expected error, got nil")
	}
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/automarket")
	t.Setenv("REDIS_URL", "")
	if _, err := config.Load(); err == nil {
		t.Error("Load() without REDIS_URL expected error, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTING_PORT", "")
	t.Setenv("NOTIFY_WORKERS", "")
	t.Setenv("NOTIFY_BASE_DELAY", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want %q", cfg.HTTPPort, "8080")
	}
	if cfg.NotifyWorkers != 2 {
		t.Errorf("NotifyWorkers = %d, want 2", cfg.NotifyWorkers)
	}
	if cfg.NotifyBaseDelay != 2*time.Second {
		t.Errorf("NotifyBaseDelay = %v, want 2s", cfg.NotifyBaseDelay)
	}
	if len(cfg.RateRefreshSpecs) != 2 {
		t.Errorf("RateRefreshSpecs = %v, want two specs", cfg.RateRefreshSpecs)
	}
}

func TestLoad_InvalidWorkers(t *testing.T) {
	setRequired(t)
	for _, v := range []string{"abc", "0", "-1"} {
		t.Setenv("NOTIFY_WORKERS", v)
		if _, err := config.Load(); err == nil {
			t.Errorf("Load() with NOTIFY_WORKERS=%q expected error, got nil", v)
		}
	}
}

func TestLoad_InvalidRate(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTIFY_PER_SECOND", "-3")
	if _, err := config.Load(); err == nil {
		t.Error("Load() with negative NOTIFY_PER_SECOND expected error, got nil")
	}
}

func TestLoad_NotifyConsumer(t *testing.T) {
	setRequired(t)

	t.Setenv("NOTIFY_CONSUMER", "worker-a")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.NotifyConsumer != "worker-a" {
		t.Errorf("NotifyConsumer = %q, want worker-a", cfg.NotifyConsumer)
	}

	t.Setenv("NOTIFY_CONSUMER", "")
	if cfg, err = config.Load(); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	want, herr := os.Hostname()
	if herr != nil || want == "" {
		want = "notify-worker"
	}
	if cfg.NotifyConsumer != want {
		t.Errorf("NotifyConsumer = %q, want hostname %q", cfg.NotifyConsumer, want)
	}
}
