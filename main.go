// Package main provides the quarry CLI entry point.
// quarry is the command-line interface for the Quarry entity resolution
// and linking engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarryintel/quarry-cli/cmd"
)

// Global flags.
var (
	debug bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry CLI - Entity resolution and linking engine",
	Long: `quarry is the command-line interface for the Quarry entity
resolution and linking engine.

Quarry resolves AI-extracted entity mentions (general partners, funds,
portfolio companies, limited partners, service providers) against each
tenant's canonical registries and records durable entity links with match
confidence and review status.

COMMON WORKFLOWS:
  Resolve one result:   quarry resolve <extraction-id>
  Background worker:    quarry worker run
  Inspect links:        quarry links list --source-id <id>
  Preview a match:      quarry entity search gp "Sequoia"
  Manage schema:        quarry db migrate`,
	SilenceUsage: true,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		if debug {
			os.Setenv("QUARRY_DEBUG", "1")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(cmd.NewResolveCommand())
	rootCmd.AddCommand(cmd.NewLinksCommand())
	rootCmd.AddCommand(cmd.NewEntityCommand())
	rootCmd.AddCommand(cmd.NewWorkerCommand())
	rootCmd.AddCommand(cmd.NewDbCommand())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
