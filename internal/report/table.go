package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/oercrawl/internal/model"
)

// WriteResourceTable prints records as a Markdown table.
func WriteResourceTable(w io.Writer, records []*model.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No resources stored.")
		return err
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		categories := "-"
		if len(r.Categories) > 0 {
			categories = strings.Join(r.Categories, ", ")
		}
		rows[i] = []string{
			truncateString(r.Title, 50),
			strconv.Itoa(r.QualityScore),
			string(r.Difficulty),
			truncateString(r.LicenseNormalized, 20),
			categories,
			r.URL,
		}
	}

	md := markdown.NewMarkdown(w)
	md.Table(markdown.TableSet{
		Header: []string{"Title", "Score", "Difficulty", "License", "Categories", "URL"},
		Rows:   rows,
	})
	md.PlainTextf("%d resource(s)", len(records))
	return md.Build()
}

// WriteFacetTable prints facets with the seed URL each one starts from.
func WriteFacetTable(w io.Writer, facets []model.Facet, seedURL func(model.Facet) (string, error)) error {
	rows := make([][]string, len(facets))
	for i, f := range facets {
		seed, err := seedURL(f)
		if err != nil {
			return fmt.Errorf("facet %s: %w", f.Slug, err)
		}
		rows[i] = []string{f.Slug, f.Name, f.QueryParam(), seed}
	}

	md := markdown.NewMarkdown(w)
	md.Table(markdown.TableSet{
		Header: []string{"Slug", "Name", "Param", "Seed"},
		Rows:   rows,
	})
	md.PlainTextf("%d facet(s)", len(facets))
	return md.Build()
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
