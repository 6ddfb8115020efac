package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"automarket/internal/config"
	"automarket/internal/db"
)

var rootCmd = &cobra.Command{
	Use:          "marketctl",
	Short:        "automarket admin CLI",
	Long:         "Administrative commands for the automarket listing platform.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL (default $REDIS_URL)")
}

// connect opens a pool from --database-url, falling back to the service
// configuration.
func connect(cmd *cobra.Command) (*pgxpool.Pool, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		url = cfg.DatabaseURL
	}
	return db.NewPostgresPool(cmdContext(cmd), url)
}

// connectRedis opens a client from --redis-url, falling back to the service
// configuration.
func connectRedis(cmd *cobra.Command) (*redis.Client, error) {
	url, _ := cmd.Flags().GetString("redis-url")
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		url = cfg.RedisURL
	}
	return db.NewRedisClient(cmdContext(cmd), url)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
