package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/quarryintel/quarry-cli/config"
	"github.com/quarryintel/quarry-cli/pkg/db"
	"github.com/quarryintel/quarry-cli/pkg/linker"
	"github.com/quarryintel/quarry-cli/pkg/logging"
	"github.com/quarryintel/quarry-cli/pkg/trigger"
)

// WorkerCommandDeps holds the dependencies for worker commands.
type WorkerCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context) (*pgxpool.Pool, error)
	NewQueue    func(*config.CLIConfig) *trigger.Queue
}

// DefaultWorkerDeps returns the default dependencies for production use.
func DefaultWorkerDeps() *WorkerCommandDeps {
	return &WorkerCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabaseWithRetry,
		NewQueue:    newTriggerQueue,
	}
}

// NewWorkerCommand creates the worker command with its subcommands.
func NewWorkerCommand() *cobra.Command {
	deps := DefaultWorkerDeps()

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Background resolution worker",
		Long: `Run the background resolution worker.

The worker consumes resolution triggers from the Redis queue (pushed by
'quarry resolve enqueue' or by the extraction pipeline), resolves each
extraction result, and retries transient failures before dead-lettering.
A Prometheus metrics endpoint is served while the worker runs.

Examples:
  # Run the worker until interrupted
  quarry worker run`,
	}

	cmd.AddCommand(newWorkerRunCommand(deps))

	return cmd
}

// newWorkerRunCommand creates the 'worker run' subcommand.
func newWorkerRunCommand(deps *WorkerCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume resolution triggers until interrupted",
		Long: `Consume resolution triggers from the queue until the process
receives an interrupt.

Retry and dead-letter behavior is controlled by the worker section of the
configuration (max_attempts, retry_delay, poll_timeout). Metrics are served
on metrics_addr (default :9090) at /metrics.`,
		Example: `  quarry worker run
  QUARRY_METRICS_ADDR=:9191 quarry worker run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), deps)
		},
	}
}

// runWorker executes the worker run command. The incoming context is
// cancelled on SIGINT/SIGTERM by main.
func runWorker(ctx context.Context, deps *WorkerCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := commandLogger(cfg)

	pool, err := deps.ConnectToDB(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(db.NewPoolStatsCollector(pool, "quarry", "worker"))
	metrics := linker.NewMetrics(registry)

	store := linker.NewPostgresStore(pool, logger)
	orch := linker.NewOrchestrator(store,
		linker.WithLogger(logger),
		linker.WithMetrics(metrics))

	queue := deps.NewQueue(cfg)
	worker := trigger.NewWorker(queue, orch,
		trigger.WithWorkerLogger(logger),
		trigger.WithMaxAttempts(cfg.Worker.MaxAttempts),
		trigger.WithRetryDelay(cfg.Worker.RetryDelay),
		trigger.WithPollTimeout(cfg.Worker.PollTimeout))

	srv := startMetricsServer(cfg.Worker.MetricsAddr, registry, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}

// startMetricsServer serves the Prometheus registry at /metrics.
func startMetricsServer(addr string, registry *prometheus.Registry, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", logging.F("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Err(err))
		}
	}()

	return srv
}
