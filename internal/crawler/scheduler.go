package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/oercrawl/internal/model"
)

// DefaultSeedParams are the query parameters added to every subject seed.
func DefaultSeedParams() url.Values {
	return url.Values{
		"batch_size": {"20"},
		"sort_by":    {"search"},
		"view_mode":  {"summary"},
	}
}

// DefaultBaseURL is the catalog listing the subject seeds are built on.
const DefaultBaseURL = "https://oercommons.org/courses/"

// PageVisit describes one dispatched page, reported to the page hook.
type PageVisit struct {
	URL        string
	Facet      model.Facet
	Page       int
	StatusCode int
	Records    int
	Skipped    int
	Err        error
	Duration   time.Duration
}

// FacetStats counts one facet's outcome.
type FacetStats struct {
	Pages   int `json:"pages"`
	Records int `json:"records"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Stats summarizes a finished run.
type Stats struct {
	Pages      int                   `json:"pages"`
	Records    int                   `json:"records"`
	Skipped    int                   `json:"skipped"`
	Failed     int                   `json:"failed"`
	Disallowed int                   `json:"disallowed"`
	Facets     map[string]FacetStats `json:"facets"`
}

// Scheduler crawls facets. Each facet's pages are fetched one after the
// other by following the next link each page advertises; different facets
// proceed in parallel under the politeness budget.
type Scheduler struct {
	fetcher Fetcher
	parser  *Parser

	concurrency int
	perHost     int
	delay       time.Duration
	politeness  *Politeness

	retry  RetryPolicy
	robots *RobotsChecker

	baseURL    string
	seedParams url.Values

	// maxPages limits pages per facet; 0 means unlimited.
	maxPages int

	// buffer is the capacity of the output channel.
	buffer int

	pageHook func(PageVisit)
	logger   *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithConcurrency sets the global cap on in-flight requests.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// WithPerHostConcurrency sets the cap on in-flight requests per host.
func WithPerHostConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.perHost = n
	}
}

// WithHostDelay sets the minimum delay between requests to the same host.
func WithHostDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.delay = d
	}
}

// WithRetryPolicy sets the retry policy. Nil means NoRetry.
func WithRetryPolicy(p RetryPolicy) SchedulerOption {
	return func(s *Scheduler) {
		if p == nil {
			p = NoRetry{}
		}
		s.retry = p
	}
}

// WithRobots enables the robots.txt gate. The checker's own robots.txt
// fetches go through the scheduler's politeness budget.
func WithRobots(r *RobotsChecker) SchedulerOption {
	return func(s *Scheduler) {
		s.robots = r
	}
}

// WithBaseURL sets the listing URL subject seeds are built on.
func WithBaseURL(u string) SchedulerOption {
	return func(s *Scheduler) {
		s.baseURL = u
	}
}

// WithSeedParams sets the extra query parameters of every seed.
func WithSeedParams(v url.Values) SchedulerOption {
	return func(s *Scheduler) {
		s.seedParams = v
	}
}

// WithMaxPagesPerFacet limits how many pages of each facet are fetched.
func WithMaxPagesPerFacet(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxPages = n
	}
}

// WithBuffer sets the output channel capacity.
func WithBuffer(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.buffer = n
	}
}

// WithPageHook registers a function called after every dispatched page.
// It is called from the facet goroutines and must be safe for concurrent use.
func WithPageHook(fn func(PageVisit)) SchedulerOption {
	return func(s *Scheduler) {
		s.pageHook = fn
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(fetcher Fetcher, parser *Parser, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		fetcher:     fetcher,
		parser:      parser,
		concurrency: DefaultConcurrency,
		perHost:     DefaultPerHostConcurrency,
		delay:       DefaultHostDelay,
		retry:       NoRetry{},
		baseURL:     DefaultBaseURL,
		seedParams:  DefaultSeedParams(),
		buffer:      64,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.politeness = NewPoliteness(s.concurrency, s.perHost, s.delay)
	if s.robots != nil && s.robots.politeness == nil {
		s.robots.politeness = s.politeness
	}
	s.stats.Facets = make(map[string]FacetStats)

	return s
}

// SeedURL returns the first page URL of a facet.
func (s *Scheduler) SeedURL(f model.Facet) (string, error) {
	if f.URL != "" {
		return f.URL, nil
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", s.baseURL, err)
	}

	q := base.Query()
	for k, v := range s.seedParams {
		q[k] = append([]string(nil), v...)
	}
	q.Set(f.QueryParam(), f.Slug)
	base.RawQuery = q.Encode()

	return base.String(), nil
}

// Run crawls every facet and streams the extracted records.
// The channel is closed once all facets have terminated or ctx is done.
// Records of a page are only sent after the whole page has been parsed.
func (s *Scheduler) Run(ctx context.Context, facets []model.Facet) <-chan *model.RawRecord {
	out := make(chan *model.RawRecord, s.buffer)

	go func() {
		defer close(out)

		var g errgroup.Group
		for _, facet := range facets {
			g.Go(func() error {
				s.crawlFacet(ctx, facet, out)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // facet walks never return errors
	}()

	return out
}

// Stats returns a snapshot of the run counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.stats
	snapshot.Facets = make(map[string]FacetStats, len(s.stats.Facets))
	for k, v := range s.stats.Facets {
		snapshot.Facets[k] = v
	}
	return snapshot
}

// crawlFacet walks one facet's pagination until it ends.
func (s *Scheduler) crawlFacet(ctx context.Context, facet model.Facet, out chan<- *model.RawRecord) {
	seed, err := s.SeedURL(facet)
	if err != nil {
		s.logger.Error("cannot build seed", "facet", facet.Slug, "error", err)
		return
	}

	logger := s.logger.With("facet", facet.Slug)
	logger.Info("facet started", "url", seed)

	visited := make(map[string]bool)
	req := &Request{URL: seed, Facet: facet, Page: 1}

	for req != nil {
		if ctx.Err() != nil {
			logger.Info("facet cancelled", "page", req.Page)
			return
		}

		if s.maxPages > 0 && req.Page > s.maxPages {
			logger.Info("facet page limit reached", "limit", s.maxPages)
			return
		}

		key := model.CanonicalURL(req.URL)
		if visited[key] {
			logger.Warn("pagination loop detected", "url", req.URL)
			return
		}
		visited[key] = true

		if s.robots != nil {
			allowed, err := s.robots.Allowed(ctx, req.URL)
			if err != nil && ctx.Err() != nil {
				logger.Info("facet cancelled", "page", req.Page)
				return
			}
			if err != nil || !allowed {
				if err == nil {
					err = ErrDisallowed
				}
				logger.Warn("request skipped", "url", req.URL, "reason", err)
				s.record(PageVisit{URL: req.URL, Facet: facet, Page: req.Page, Err: err})
				return
			}
		}

		req = s.visit(ctx, logger, req, out)
	}

	logger.Info("facet finished")
}

// visit fetches and parses one page, publishes its records and returns the
// next request or nil.
func (s *Scheduler) visit(ctx context.Context, logger *slog.Logger, req *Request, out chan<- *model.RawRecord) *Request {
	start := time.Now()
	visit := PageVisit{URL: req.URL, Facet: req.Facet, Page: req.Page}

	page, err := s.fetch(ctx, *req)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			visit.StatusCode = statusErr.StatusCode
		}
		visit.Err = err
		visit.Duration = time.Since(start)
		logger.Warn("fetch failed", "url", req.URL, "page", req.Page, "error", err)
		s.record(visit)
		return nil
	}
	visit.StatusCode = page.StatusCode

	result, err := s.parser.ParsePage(page)
	if err != nil {
		visit.Err = err
		visit.Duration = time.Since(start)
		logger.Warn("page abandoned", "url", req.URL, "page", req.Page, "error", err)
		s.record(visit)
		return nil
	}

	visit.Records = len(result.Records)
	visit.Skipped = result.Skipped
	visit.Duration = time.Since(start)
	s.record(visit)

	logger.Debug("page parsed",
		"url", req.URL,
		"page", req.Page,
		"records", visit.Records,
		"skipped", visit.Skipped,
		"has_next", result.Next != nil,
	)

	for _, rec := range result.Records {
		select {
		case out <- rec:
		case <-ctx.Done():
			return nil
		}
	}

	return result.Next
}

// fetch runs the fetcher under the retry policy and the politeness budget.
func (s *Scheduler) fetch(ctx context.Context, req Request) (*Page, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}

	var page *Page
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		release, err := s.politeness.Acquire(ctx, u.Host)
		if err != nil {
			return err
		}
		defer release()

		page, err = s.fetcher.Fetch(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// record updates the counters and calls the page hook.
func (s *Scheduler) record(v PageVisit) {
	s.mu.Lock()
	fs := s.stats.Facets[v.Facet.Slug]
	switch {
	case errors.Is(v.Err, ErrDisallowed):
		s.stats.Disallowed++
	case v.Err != nil:
		s.stats.Failed++
		fs.Failed++
	default:
		s.stats.Pages++
		s.stats.Records += v.Records
		s.stats.Skipped += v.Skipped
		fs.Pages++
		fs.Records += v.Records
		fs.Skipped += v.Skipped
	}
	s.stats.Facets[v.Facet.Slug] = fs
	s.mu.Unlock()

	if s.pageHook != nil {
		s.pageHook(v)
	}
}
