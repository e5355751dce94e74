package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/oercrawl/internal/config"
	"github.com/nao1215/oercrawl/internal/database"
	"github.com/nao1215/oercrawl/internal/model"
	"github.com/nao1215/oercrawl/internal/report"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored resources",
		Long: `List prints resources stored by previous crawls, best scored first.

Examples:
  # Top 20 resources
  oercrawl list --limit 20

  # Science resources scoring at least 3, as JSON
  oercrawl list --category science --min-score 3 --json`,
		Args: cobra.NoArgs,
		RunE: runListCmd,
	}

	cmd.Flags().IntP("limit", "n", 50, "Maximum number of resources (0 = all)")
	cmd.Flags().Int("min-score", 0, "Minimum quality score")
	cmd.Flags().String("category", "", "Only resources tagged with this category")
	cmd.Flags().String("facet", "", "Only resources crawled under this facet slug")
	cmd.Flags().BoolP("json", "j", false, "Print a JSON array instead of a table")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

func runListCmd(cmd *cobra.Command, _ []string) error {
	var filter database.ListFilter
	var err error

	flags := cmd.Flags()
	if filter.Limit, err = flags.GetInt("limit"); err != nil {
		return err
	}
	if filter.MinScore, err = flags.GetInt("min-score"); err != nil {
		return err
	}
	if filter.Category, err = flags.GetString("category"); err != nil {
		return err
	}
	if filter.Facet, err = flags.GetString("facet"); err != nil {
		return err
	}
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database (run 'oercrawl crawl' first): %w", err)
	}
	defer db.Close()

	stored, err := db.ListResources(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if asJSON {
		feed := report.NewFeedWriter(cmd.OutOrStdout())
		for _, s := range stored {
			if err := feed.Write(s); err != nil {
				return err
			}
		}
		return feed.Close()
	}

	records := make([]*model.Record, len(stored))
	for i, s := range stored {
		records[i] = &s.Record
	}
	return report.WriteResourceTable(cmd.OutOrStdout(), records)
}
