package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/quarryintel/quarry-cli/config"
	"github.com/quarryintel/quarry-cli/pkg/linker"
	"github.com/quarryintel/quarry-cli/pkg/trigger"
)

// Resolve command flags
var (
	resolveOutput string
)

// ResolveCommandDeps holds the dependencies for resolve commands.
type ResolveCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context) (*pgxpool.Pool, error)
	NewQueue    func(*config.CLIConfig) *trigger.Queue
}

// DefaultResolveDeps returns the default dependencies for production use.
func DefaultResolveDeps() *ResolveCommandDeps {
	return &ResolveCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
		NewQueue:    newTriggerQueue,
	}
}

// NewResolveCommand creates the resolve command with its subcommands.
func NewResolveCommand() *cobra.Command {
	deps := DefaultResolveDeps()

	cmd := &cobra.Command{
		Use:   "resolve <extraction-id>",
		Short: "Resolve extracted entity mentions against the registry",
		Long: `Resolve the entity mentions of one extraction result against the
tenant's canonical registries and write entity links.

The extraction result must be in status ai_done. Mentions that match a
registry entry exactly produce high-confidence links; partial matches are
linked at lower confidence and routed to the review queue. When all
mentions have been processed the extraction is finalized to status linked.

Examples:
  # Resolve extraction result 42 synchronously
  quarry resolve 42

  # Enqueue extraction result 42 for the background worker
  quarry resolve enqueue 42`,
		Example: `  quarry resolve 42
  quarry resolve 42 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid extraction id %q: %w", args[0], err)
			}
			return runResolve(cmd.Context(), deps, id)
		},
	}

	cmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "Output format: text, json")

	cmd.AddCommand(newResolveEnqueueCommand(deps))

	return cmd
}

// newResolveEnqueueCommand creates the 'resolve enqueue' subcommand.
func newResolveEnqueueCommand(deps *ResolveCommandDeps) *cobra.Command {
	var tenantFlag string

	cmd := &cobra.Command{
		Use:   "enqueue <extraction-id>",
		Short: "Enqueue an extraction result for background resolution",
		Long: `Enqueue a resolution trigger for the background worker.

The trigger is pushed onto the Redis queue consumed by 'quarry worker run'.
Use this when resolution should happen asynchronously, for example from the
extraction pipeline itself.

Examples:
  # Enqueue extraction result 42
  quarry resolve enqueue 42`,
		Example: `  quarry resolve enqueue 42
  quarry resolve enqueue 42 --tenant tenant-acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid extraction id %q: %w", args[0], err)
			}
			return runResolveEnqueue(cmd.Context(), deps, id, tenantFlag)
		},
	}

	cmd.Flags().StringVarP(&tenantFlag, "tenant", "t", "", "Tenant identifier (defaults to configured tenant)")

	return cmd
}

// runResolve executes one synchronous resolution run.
func runResolve(ctx context.Context, deps *ResolveCommandDeps, extractionID int64) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := deps.ConnectToDB(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	logger := commandLogger(cfg)
	store := linker.NewPostgresStore(pool, logger)
	orch := linker.NewOrchestrator(store, linker.WithLogger(logger))

	summary, err := orch.Run(ctx, extractionID)
	if err != nil {
		return fmt.Errorf("resolving extraction %d: %w", extractionID, err)
	}

	format := cfg.OutputFormat
	if resolveOutput != "" {
		format = config.OutputFormat(resolveOutput)
	}
	if format == config.OutputFormatJSON {
		return printJSON(summary)
	}

	printSummaryText(summary)
	return nil
}

// runResolveEnqueue pushes a resolution trigger onto the queue.
func runResolveEnqueue(ctx context.Context, deps *ResolveCommandDeps, extractionID int64, tenantFlag string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Tenant is informational on the trigger; resolution reads it from the
	// extraction row. Fall back to the configured tenant without failing.
	tenant := tenantFlag
	if tenant == "" {
		tenant = cfg.TenantID
	}

	queue := deps.NewQueue(cfg)
	msgID, err := queue.Enqueue(ctx, tenant, extractionID)
	if err != nil {
		return fmt.Errorf("enqueueing resolution trigger: %w", err)
	}

	fmt.Printf("Enqueued resolution trigger %s for extraction %d\n", msgID, extractionID)
	return nil
}

// printSummaryText formats a resolution summary for terminal display.
func printSummaryText(s *linker.Summary) {
	if s.Outcome == linker.OutcomeNoEntities {
		fmt.Printf("Extraction %d has no entity mentions; status unchanged.\n", s.ExtractionID)
		return
	}

	fmt.Printf("Extraction %d resolved (source %d, tenant %s)\n", s.ExtractionID, s.SourceID, s.TenantID)
	fmt.Printf("  Matched:       %d\n", s.Matched)
	fmt.Printf("  Links written: %d\n", s.LinksWritten)
	fmt.Printf("  Review queued: %d\n", s.ReviewQueued)
	fmt.Printf("  Unmatched:     %d\n", s.Unmatched)
	if s.Skipped > 0 {
		fmt.Printf("  Skipped:       %d\n", s.Skipped)
	}
}
