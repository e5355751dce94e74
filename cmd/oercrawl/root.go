package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/oercrawl/internal/log"
)

// NewRootCmd creates the root command for oercrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oercrawl",
		Short: "Crawl and extract the OER Commons catalog",
		Long: `oercrawl crawls the OER Commons catalog of open educational resources.

Each subject area is paginated independently under a polite request budget.
Every listed resource is extracted, validated, normalized, categorized and
scored. Accepted resources are written to a JSON feed and upserted into a
local SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewFacetsCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loggerFromFlags builds the logger selected by the persistent flags.
func loggerFromFlags(cmd *cobra.Command) *slog.Logger {
	return log.NewLogger(cmd.ErrOrStderr(), persistentBool(cmd, "verbose"), persistentBool(cmd, "log-json"))
}

// persistentBool reads a root persistent flag. A command run without its
// root, as in tests, reports false.
func persistentBool(cmd *cobra.Command, name string) bool {
	if v, err := cmd.Flags().GetBool(name); err == nil {
		return v
	}
	v, err := cmd.Root().PersistentFlags().GetBool(name)
	return err == nil && v
}
