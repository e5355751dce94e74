package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/oercrawl/internal/config"
	"github.com/nao1215/oercrawl/internal/crawler"
	"github.com/nao1215/oercrawl/internal/database"
	"github.com/nao1215/oercrawl/internal/extract"
	"github.com/nao1215/oercrawl/internal/pipeline"
	"github.com/nao1215/oercrawl/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the catalog and store accepted resources",
		Long: `Crawl seeds one listing request per facet and follows each facet's
pagination until it ends. Every entry is extracted, validated, normalized,
categorized and scored; accepted resources go to the JSON feed and the
SQLite database. A Markdown summary is printed when the run ends.

Ctrl+C stops the crawl. Records already accepted stay in both outputs and
the feed is closed as a valid JSON array.

Examples:
  # Crawl every subject area
  oercrawl crawl

  # Crawl two facets, three pages each, with retries
  oercrawl crawl --facet mathematics --facet law --max-pages 3 --retries 2

  # Honor robots.txt and skip the database
  oercrawl crawl --robots --no-db

  # Use a custom configuration file
  oercrawl crawl -c myconfig.yaml`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .oercrawl.yaml in current or home directory)")
	cmd.Flags().StringSliceP("facet", "f", nil,
		"Facet slug to crawl; repeatable (default: every subject area)")
	cmd.Flags().Bool("keywords", false, "Also crawl the built-in keyword facets")

	cmd.Flags().Int("concurrency", config.DefaultConcurrency, "Global cap on in-flight requests")
	cmd.Flags().Int("per-host", config.DefaultPerHost, "Cap on in-flight requests per host")
	cmd.Flags().Duration("delay", config.DefaultHostDelay, "Minimum delay between requests to one host")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().IntP("retries", "r", 0, "Retries for transient failures (429, 5xx, network errors)")
	cmd.Flags().Bool("robots", false, "Honor robots.txt")
	cmd.Flags().IntP("max-pages", "p", 0, "Maximum pages per facet (0 = until pagination ends)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Records processed concurrently")
	cmd.Flags().String("context-id", "", "Scope stored resources to a course or collection")

	cmd.Flags().String("feed", config.DefaultFeedTemplate, "Feed path template ({time}, {run})")
	cmd.Flags().Bool("no-feed", false, "Do not write the JSON feed")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false, "Do not write to the database")
	cmd.Flags().StringP("summary", "o", "", "Write the Markdown summary to this file instead of stdout")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := loggerFromFlags(cmd)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runCrawl(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return writeSummary(cmd.OutOrStdout(), cfg.SummaryFile, summary)
}

// buildConfig layers defaults, the configuration file and the changed flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if err := applyFlag(flags.Changed("concurrency"), &cfg.Concurrency, flags.GetInt, "concurrency"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("per-host"), &cfg.PerHost, flags.GetInt, "per-host"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("delay"), &cfg.HostDelay, flags.GetDuration, "delay"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("timeout"), &cfg.Timeout, flags.GetDuration, "timeout"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("retries"), &cfg.MaxRetries, flags.GetInt, "retries"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("robots"), &cfg.Robots, flags.GetBool, "robots"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("max-pages"), &cfg.MaxPagesPerFacet, flags.GetInt, "max-pages"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("workers"), &cfg.Workers, flags.GetInt, "workers"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("context-id"), &cfg.ContextID, flags.GetString, "context-id"); err != nil {
		return nil, err
	}
	if err := applyFlag(flags.Changed("summary"), &cfg.SummaryFile, flags.GetString, "summary"); err != nil {
		return nil, err
	}
	if flags.Changed("feed") {
		cfg.FeedEnabled = true
		if cfg.FeedTemplate, err = flags.GetString("feed"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		cfg.SaveToDB = true
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	noFeed, err := flags.GetBool("no-feed")
	if err != nil {
		return nil, err
	}
	if noFeed {
		cfg.FeedEnabled = false
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	if noDB {
		cfg.SaveToDB = false
	}

	keywords, err := flags.GetBool("keywords")
	if err != nil {
		return nil, err
	}
	slugs, err := flags.GetStringSlice("facet")
	if err != nil {
		return nil, err
	}
	if keywords && len(slugs) == 0 {
		cfg.Facets = config.AllFacets()
	}
	if err := cfg.SelectFacets(slugs); err != nil {
		return nil, err
	}

	cfg.Verbose = persistentBool(cmd, "verbose")
	cfg.LogJSON = persistentBool(cmd, "log-json")

	return cfg, nil
}

// applyFlag copies a changed flag value into dst.
func applyFlag[T any](changed bool, dst *T, get func(string) (T, error), name string) error {
	if !changed {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// newScheduler wires the fetcher, extractor and politeness settings of cfg.
func newScheduler(cfg *config.Config, logger *slog.Logger, opts ...crawler.SchedulerOption) *crawler.Scheduler {
	client := &http.Client{Timeout: cfg.Timeout}
	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithUserAgents(cfg.UserAgents...),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	parser := crawler.NewParser(
		extract.New(extract.WithSelectors(cfg.Selectors)),
		crawler.WithParserLogger(logger),
	)

	seedParams := crawler.DefaultSeedParams()
	seedParams.Set("batch_size", strconv.Itoa(cfg.BatchSize))

	base := []crawler.SchedulerOption{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithPerHostConcurrency(cfg.PerHost),
		crawler.WithHostDelay(cfg.HostDelay),
		crawler.WithBaseURL(cfg.BaseURL),
		crawler.WithSeedParams(seedParams),
		crawler.WithMaxPagesPerFacet(cfg.MaxPagesPerFacet),
		crawler.WithSchedulerLogger(logger),
	}
	if cfg.MaxRetries > 0 {
		base = append(base, crawler.WithRetryPolicy(crawler.Backoff{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   2.0,
		}))
	}
	if cfg.Robots {
		base = append(base, crawler.WithRobots(crawler.NewRobotsChecker(client, fetcher.UserAgent(), 0)))
	}

	return crawler.NewScheduler(fetcher, parser, append(base, opts...)...)
}

// runCrawl executes one crawl run and returns its summary. Cancelling ctx
// ends the run early; the partial summary is still returned.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*report.RunSummary, error) {
	runID := uuid.NewString()
	startedAt := time.Now()
	logger = logger.With("run", runID)

	logger.Info("starting crawl",
		"facets", len(cfg.Facets),
		"concurrency", cfg.Concurrency,
		"per_host", cfg.PerHost,
		"delay", cfg.HostDelay,
		"retries", cfg.MaxRetries,
		"robots", cfg.Robots,
	)

	summary := &report.RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Facets:    cfg.Facets,
	}

	// Bookkeeping must survive the interrupt that ends the crawl.
	bookkeeping := context.WithoutCancel(ctx)

	var sinks pipeline.MultiSink
	var schedOpts []crawler.SchedulerOption

	var db *database.ResourceDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.StartRun(bookkeeping, runID, len(cfg.Facets)); err != nil {
			return nil, err
		}
		summary.DBPath = db.Path()
		sinks = append(sinks, database.NewSink(db))
		schedOpts = append(schedOpts, crawler.WithPageHook(func(v crawler.PageVisit) {
			err := db.RecordPage(bookkeeping, database.PageRecord{
				RunID:      runID,
				URL:        v.URL,
				FacetSlug:  v.Facet.Slug,
				Page:       v.Page,
				StatusCode: v.StatusCode,
				Records:    v.Records,
				Skipped:    v.Skipped,
				Err:        v.Err,
				Duration:   v.Duration,
			})
			if err != nil {
				logger.Warn("failed to record page", "url", v.URL, "error", err)
			}
		}))
		logger.Info("database opened", "path", db.Path())
	}

	var feed *report.FeedWriter
	if cfg.FeedEnabled {
		path := report.FeedPath(cfg.FeedTemplate, startedAt, runID)
		var err error
		feed, err = report.CreateFeed(path)
		if err != nil {
			return nil, err
		}
		defer feed.Close()

		summary.FeedPath = path
		sinks = append(sinks, feed)
		logger.Info("writing feed", "path", path)
	}

	sched := newScheduler(cfg, logger, schedOpts...)
	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithStages(pipeline.DefaultStages(pipeline.StageConfig{ContextID: cfg.ContextID})...),
	)
	runner := pipeline.NewRunner(p, sinks,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithRunnerLogger(logger),
	)

	result, runErr := runner.Run(ctx, sched.Run(ctx, cfg.Facets))
	summary.Pipeline = result
	summary.Crawl = sched.Stats()
	summary.FinishedAt = time.Now()
	summary.Interrupted = runErr != nil

	if feed != nil {
		if err := feed.Close(); err != nil {
			logger.Error("failed to close feed", "error", err)
		}
	}

	status := database.RunStatusCompleted
	if summary.Interrupted {
		status = database.RunStatusInterrupted
		logger.Warn("crawl interrupted", "error", runErr)
	}
	if db != nil {
		err := db.FinishRun(bookkeeping, runID, database.RunResult{
			Pages:        summary.Crawl.Pages,
			FailedPages:  summary.Crawl.Failed,
			Accepted:     result.Accepted,
			Rejected:     result.RejectedTotal(),
			SinkFailures: result.SinkFailures,
			Status:       status,
		})
		if err != nil {
			logger.Error("failed to finish run", "error", err)
		}
	}

	logger.Info("crawl finished",
		"pages", summary.Crawl.Pages,
		"records", summary.Crawl.Records,
		"accepted", result.Accepted,
		"rejected", result.RejectedTotal(),
		"elapsed", summary.FinishedAt.Sub(startedAt).Round(time.Millisecond),
	)

	return summary, nil
}

// writeSummary writes the Markdown summary to path, or to stdout when path
// is empty.
func writeSummary(stdout io.Writer, path string, summary *report.RunSummary) error {
	if path == "" {
		return report.NewSummaryWriter(stdout).Write(summary)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	err = report.NewSummaryWriter(f).Write(summary)
	return errors.Join(err, f.Close())
}
