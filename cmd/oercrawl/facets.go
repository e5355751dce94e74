package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/oercrawl/internal/config"
	"github.com/nao1215/oercrawl/internal/report"
)

// NewFacetsCmd creates the facets command.
func NewFacetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facets",
		Short: "List the facets a crawl would seed",
		Long: `Facets prints every configured facet with the seed URL its pagination
starts from. No request is sent.

Examples:
  oercrawl facets
  oercrawl facets --all`,
		Args: cobra.NoArgs,
		RunE: runFacetsCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file path")
	cmd.Flags().Bool("all", false, "List the built-in keyword facets too")

	return cmd
}

func runFacetsCmd(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if all {
		cfg.Facets = config.AllFacets()
	}

	sched := newScheduler(cfg, slog.New(slog.DiscardHandler))
	return report.WriteFacetTable(cmd.OutOrStdout(), cfg.Facets, sched.SeedURL)
}
