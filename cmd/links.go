package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/quarryintel/quarry-cli/config"
	"github.com/quarryintel/quarry-cli/pkg/linker"
)

// Links command flags
var (
	linksTenant   string
	linksSourceID int64
	linksOutput   string
)

// LinksCommandDeps holds the dependencies for links commands.
type LinksCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context) (*pgxpool.Pool, error)
}

// DefaultLinksDeps returns the default dependencies for production use.
func DefaultLinksDeps() *LinksCommandDeps {
	return &LinksCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
	}
}

// NewLinksCommand creates the links command with its subcommands.
func NewLinksCommand() *cobra.Command {
	deps := DefaultLinksDeps()

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Inspect entity links",
		Long: `Inspect the entity links written by resolution runs.

Each link connects a source item (for example a news article) to one entry
in a tenant's canonical registry, with the match confidence and a status of
LINKED or REVIEW.

Examples:
  # List links for news article 7
  quarry links list --source-id 7

  # List links for a specific tenant as JSON
  quarry links list --source-id 7 --tenant tenant-acme --output json`,
	}

	cmd.AddCommand(newLinksListCommand(deps))

	return cmd
}

// newLinksListCommand creates the 'links list' subcommand.
func newLinksListCommand(deps *LinksCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entity links for a source item",
		Long: `List the entity links recorded for one source item.

Links are scoped to a tenant; the tenant comes from --tenant, the config
file, or QUARRY_TENANT_ID.

Examples:
  # List links for news article 7
  quarry links list --source-id 7`,
		Example: `  quarry links list --source-id 7
  quarry links list --source-id 7 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinksList(cmd.Context(), deps)
		},
	}

	cmd.Flags().StringVarP(&linksTenant, "tenant", "t", "", "Tenant identifier (defaults to configured tenant)")
	cmd.Flags().Int64VarP(&linksSourceID, "source-id", "s", 0, "Source item id (required)")
	cmd.Flags().StringVarP(&linksOutput, "output", "o", "", "Output format: text, json")
	_ = cmd.MarkFlagRequired("source-id")

	return cmd
}

// runLinksList executes the links list command.
func runLinksList(ctx context.Context, deps *LinksCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tenant, err := resolveTenant(linksTenant, cfg)
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store := linker.NewPostgresStore(pool, commandLogger(cfg))
	links, err := store.ListLinksBySource(ctx, tenant, linker.SourceTypeNews, linksSourceID)
	if err != nil {
		return fmt.Errorf("listing links: %w", err)
	}

	format := cfg.OutputFormat
	if linksOutput != "" {
		format = config.OutputFormat(linksOutput)
	}
	if format == config.OutputFormatJSON {
		return printJSON(links)
	}

	if len(links) == 0 {
		fmt.Printf("No links for source %d.\n", linksSourceID)
		return nil
	}

	fmt.Printf("Links for source %d (%d):\n", linksSourceID, len(links))
	fmt.Println("  ENTITY TYPE         ENTITY ID   CONFIDENCE  STATUS")
	fmt.Println("  -----------         ---------   ----------  ------")
	for _, l := range links {
		fmt.Printf("  %-19s %-11d %-11d %s\n", l.EntityType, l.EntityID, l.Confidence, l.Status)
	}
	return nil
}
