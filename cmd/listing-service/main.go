// automarket listing-service
//
// REST API for car listings: creation with catalog resolution and price
// snapshots, profanity moderation, search, premium statistics and catalog
// requests. Moderation and catalog-gap notifications are queued on Redis for
// the notify-worker.
//
// A gRPC health endpoint on GRPC_PORT follows PostgreSQL and Redis liveness.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"automarket/internal/config"
	"automarket/internal/db"
	"automarket/internal/grpcserver"
	"automarket/internal/listing"
	"automarket/internal/notify"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[listing-service] Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[listing-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[listing-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[listing-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[listing-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[listing-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[listing-service] Redis connected ✓")

	// ── Service ──────────────────────────────────────────────────────────────
	svc := listing.NewService(listing.NewPostgresStore(pool), notify.NewRedisQueue(rdb))

	// ── HTTP server ──────────────────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/health", healthHandler)
	listing.NewHandler(svc).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── gRPC health ──────────────────────────────────────────────────────────
	health := grpcserver.NewServer(map[string]grpcserver.Probe{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, 15*time.Second)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("[listing-service] gRPC listen: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[listing-service] v%s HTTP listening on :%s", version, cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("[listing-service] gRPC listening on :%s", cfg.GRPCPort)
		return health.GRPC().Serve(lis)
	})
	g.Go(func() error {
		health.Watch(gctx)
		return nil
	})

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[listing-service] Shutting down…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		health.GRPC().GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[listing-service] Stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("[listing-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "listing-service",
		"version": version,
	})
}
