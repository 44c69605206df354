// Package cmd provides CLI commands for the quarry tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quarryintel/quarry-cli/config"
	"github.com/quarryintel/quarry-cli/pkg/db"
	"github.com/quarryintel/quarry-cli/pkg/logging"
	"github.com/quarryintel/quarry-cli/pkg/trigger"
)

// connectToDatabase opens a pgx pool from DB_* environment variables.
func connectToDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, db.ConfigFromEnv())
}

// connectToDatabaseWithRetry is the worker's startup path: the worker may
// come up before the database does, so dial failures are retried.
func connectToDatabaseWithRetry(ctx context.Context) (*pgxpool.Pool, error) {
	return db.ConnectWithRetry(ctx, db.ConfigFromEnv(), 5, 3*time.Second)
}

// newRedisClient creates a Redis client from the CLI configuration.
func newRedisClient(cfg *config.CLIConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// newTriggerQueue creates the resolution trigger queue from the CLI
// configuration.
func newTriggerQueue(cfg *config.CLIConfig) *trigger.Queue {
	return trigger.NewQueue(newRedisClient(cfg), cfg.Redis.Queue)
}

// commandLogger builds a logger honoring the debug setting.
func commandLogger(cfg *config.CLIConfig) logging.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.ServiceName = "quarry"
	if cfg.Debug {
		logCfg.Level = logging.LevelDebug
	}
	return logging.NewLogger(logCfg)
}

// resolveTenant returns the tenant from the flag if set, otherwise from the
// configuration. An empty result is an error since every registry lookup is
// tenant-scoped.
func resolveTenant(flagValue string, cfg *config.CLIConfig) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.TenantID != "" {
		return cfg.TenantID, nil
	}
	return "", fmt.Errorf("tenant is required: set --tenant, tenant_id in config, or QUARRY_TENANT_ID")
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
