package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/oercrawl/internal/crawler"
	"github.com/nao1215/oercrawl/internal/model"
	"github.com/nao1215/oercrawl/internal/pipeline"
)

// RunSummary is everything the summary report shows about one run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Interrupted is set when the run was cancelled before the facets ended.
	Interrupted bool

	Facets   []model.Facet
	Crawl    crawler.Stats
	Pipeline *pipeline.Summary

	FeedPath string
	DBPath   string
}

// SummaryWriter writes a RunSummary as Markdown.
type SummaryWriter struct {
	output io.Writer
}

// NewSummaryWriter creates a SummaryWriter.
func NewSummaryWriter(output io.Writer) *SummaryWriter {
	return &SummaryWriter{output: output}
}

// Write renders s.
func (w *SummaryWriter) Write(s *RunSummary) error {
	p := s.Pipeline
	if p == nil {
		p = &pipeline.Summary{}
	}

	md := markdown.NewMarkdown(w.output)

	md.H1("OER Crawl Summary")
	md.PlainText("")

	status := "✅ Complete"
	if s.Interrupted {
		status = "⚠️ Interrupted (partial results)"
	}
	rows := [][]string{
		{"Run", "`" + s.RunID + "`"},
		{"Started", s.StartedAt.Format(time.RFC3339)},
		{"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()},
		{"Status", status},
	}
	if s.FeedPath != "" {
		rows = append(rows, []string{"Feed", "`" + s.FeedPath + "`"})
	}
	if s.DBPath != "" {
		rows = append(rows, []string{"Database", "`" + s.DBPath + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	w.writeFacets(md, s)
	w.writePipeline(md, p)
	w.writeCategories(md, p)

	switch {
	case s.Crawl.Failed > 0:
		md.Warningf("%d page(s) could not be fetched or parsed.", s.Crawl.Failed)
	case p.SinkFailures > 0:
		md.Warningf("%d accepted record(s) could not be stored.", p.SinkFailures)
	case p.Accepted == 0:
		md.Note("No record was accepted.")
	default:
		md.Tip(fmt.Sprintf("%d record(s) accepted.", p.Accepted))
	}
	md.PlainText("")

	return md.Build()
}

func (w *SummaryWriter) writeFacets(md *markdown.Markdown, s *RunSummary) {
	md.H2("Facets")
	md.PlainText("")

	rows := make([][]string, 0, len(s.Facets)+1)
	for _, f := range s.Facets {
		fs := s.Crawl.Facets[f.Slug]
		rows = append(rows, []string{
			f.Name,
			"`" + f.Slug + "`",
			strconv.Itoa(fs.Pages),
			strconv.Itoa(fs.Records),
			strconv.Itoa(fs.Skipped),
			strconv.Itoa(fs.Failed),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"",
		"**" + strconv.Itoa(s.Crawl.Pages) + "**",
		"**" + strconv.Itoa(s.Crawl.Records) + "**",
		"**" + strconv.Itoa(s.Crawl.Skipped) + "**",
		"**" + strconv.Itoa(s.Crawl.Failed) + "**",
	})

	md.Table(markdown.TableSet{
		Header: []string{"Facet", "Slug", "Pages", "Records", "Skipped", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Crawl.Disallowed > 0 {
		md.Importantf("%d request(s) were skipped by robots.txt.", s.Crawl.Disallowed)
		md.PlainText("")
	}
}

func (w *SummaryWriter) writePipeline(md *markdown.Markdown, p *pipeline.Summary) {
	md.H2("Pipeline")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Processed", strconv.Itoa(p.Processed)},
			{"Accepted", strconv.Itoa(p.Accepted)},
			{"Rejected", strconv.Itoa(p.RejectedTotal())},
			{"Failed", strconv.Itoa(p.Failed)},
			{"Sink failures", strconv.Itoa(p.SinkFailures)},
		},
	})
	md.PlainText("")

	if len(p.Rejected) == 0 {
		return
	}

	md.H3("Rejection reasons")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Reason", "Count"},
		Rows:   countRows(p.Rejected),
	})
	md.PlainText("")
}

func (w *SummaryWriter) writeCategories(md *markdown.Markdown, p *pipeline.Summary) {
	md.H2("Categories")
	md.PlainText("")

	if len(p.Categories) == 0 {
		md.PlainText("No accepted record matched a category.")
		md.PlainText("")
		return
	}

	rows := countRows(p.Categories)
	md.Table(markdown.TableSet{Header: []string{"Category", "Records"}, Rows: rows})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Accepted records by category"),
		piechart.WithShowData(true),
	)
	for _, row := range rows {
		n, _ := strconv.ParseUint(row[1], 10, 64) //nolint:errcheck // built by countRows
		chart.LabelAndIntValue(row[0], n)
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// countRows turns a count map into rows sorted by count, then key.
func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, strconv.Itoa(counts[k])}
	}
	return rows
}
