package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/quarryintel/quarry-cli/config"
	"github.com/quarryintel/quarry-cli/pkg/linker"
)

// Entity command flags
var (
	entityTenant string
	entityOutput string
)

// EntityCommandDeps holds the dependencies for entity commands.
type EntityCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context) (*pgxpool.Pool, error)
}

// DefaultEntityDeps returns the default dependencies for production use.
func DefaultEntityDeps() *EntityCommandDeps {
	return &EntityCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
	}
}

// NewEntityCommand creates the entity command with its subcommands.
func NewEntityCommand() *cobra.Command {
	deps := DefaultEntityDeps()

	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Query canonical registry entities",
		Long: `Query the tenant's canonical entity registries.

Registries exist for general partners, funds, portfolio companies, limited
partners, and service providers. The search subcommand runs the same
matching logic the resolution pipeline uses, so it can be used to preview
how a mention would resolve.

Examples:
  # How would the mention "Sequoia" resolve as a general partner?
  quarry entity search gp "Sequoia"`,
	}

	cmd.AddCommand(newEntitySearchCommand(deps))

	return cmd
}

// newEntitySearchCommand creates the 'entity search' subcommand.
func newEntitySearchCommand(deps *EntityCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <type> <name>",
		Short: "Resolve a mention against a registry",
		Long: `Resolve a single mention against one registry, exactly as the
resolution pipeline would: exact name match first (case-insensitive), then
a contains match. Prints the matched entity id, confidence, and match type,
or reports that the mention is unmatched.

Entity types: gp, fund, pc, lp, sp

Examples:
  # Exact or fuzzy match for a fund name
  quarry entity search fund "Growth Fund III"`,
		Example: `  quarry entity search gp "Sequoia"
  quarry entity search fund "Growth Fund III" --tenant tenant-acme`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntitySearch(cmd.Context(), deps, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&entityTenant, "tenant", "t", "", "Tenant identifier (defaults to configured tenant)")
	cmd.Flags().StringVarP(&entityOutput, "output", "o", "", "Output format: text, json")

	return cmd
}

// runEntitySearch executes the entity search command.
func runEntitySearch(ctx context.Context, deps *EntityCommandDeps, typeArg, name string) error {
	entityType, ok := linker.EntityTypeFromTag(strings.ToLower(typeArg))
	if !ok {
		return fmt.Errorf("unknown entity type %q (valid: %s)", typeArg, entityTypeList())
	}

	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tenant, err := resolveTenant(entityTenant, cfg)
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store := linker.NewPostgresStore(pool, commandLogger(cfg))
	matcher := linker.NewMatcher(store)

	outcome, err := matcher.Resolve(ctx, tenant, entityType, name)
	if err != nil {
		return fmt.Errorf("resolving mention: %w", err)
	}

	format := cfg.OutputFormat
	if entityOutput != "" {
		format = config.OutputFormat(entityOutput)
	}
	if format == config.OutputFormatJSON {
		if outcome == nil {
			return printJSON(map[string]interface{}{"matched": false})
		}
		return printJSON(outcome)
	}

	if outcome == nil {
		fmt.Printf("No %s matches %q for tenant %s.\n", entityType.DisplayName(), name, tenant)
		return nil
	}

	fmt.Printf("Matched %s %d (%s match, confidence %d, status %s)\n",
		entityType.DisplayName(), outcome.EntityID, outcome.MatchType,
		outcome.Confidence, linker.StatusForConfidence(outcome.Confidence))
	return nil
}

// entityTypeList returns the valid entity type tags for help text.
func entityTypeList() string {
	types := linker.AllEntityTypes()
	tags := make([]string, len(types))
	for i, t := range types {
		tags[i] = string(t)
	}
	return strings.Join(tags, ", ")
}
