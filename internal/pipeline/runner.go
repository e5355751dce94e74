package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/oercrawl/internal/model"
)

// DefaultWorkers is the number of records processed concurrently.
const DefaultWorkers = 4

// Sink receives accepted records. Put must be safe for concurrent use.
type Sink interface {
	Put(ctx context.Context, r *model.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r *model.Record) error

// Put implements Sink.
func (f SinkFunc) Put(ctx context.Context, r *model.Record) error {
	return f(ctx, r)
}

// MultiSink puts every record into each sink in order and joins the
// failures. A failing sink does not prevent the others from receiving the
// record.
type MultiSink []Sink

// Put implements Sink.
func (m MultiSink) Put(ctx context.Context, r *model.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Put(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary counts the outcome of a run.
type Summary struct {
	Processed    int `json:"processed"`
	Accepted     int `json:"accepted"`
	SinkFailures int `json:"sink_failures"`

	// Failed counts records aborted by an error other than a rejection.
	Failed int `json:"failed"`

	// Rejected maps a rejection reason to its count.
	Rejected map[string]int `json:"rejected"`

	// Categories and Difficulties count accepted records.
	Categories   map[string]int `json:"categories"`
	Difficulties map[string]int `json:"difficulties"`

	Elapsed time.Duration `json:"elapsed"`
}

// RejectedTotal returns the number of rejected records.
func (s *Summary) RejectedTotal() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}

func newSummary() *Summary {
	return &Summary{
		Rejected:     make(map[string]int),
		Categories:   make(map[string]int),
		Difficulties: make(map[string]int),
	}
}

// Runner drains a record stream through a Pipeline into a Sink with a
// bounded number of workers.
type Runner struct {
	pipeline *Pipeline
	sink     Sink
	workers  int
	logger   *slog.Logger

	// onAccept is called after a record has been handed to the sink.
	onAccept func(*model.Record)

	mu      sync.Mutex
	summary *Summary
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithAcceptHook registers a function called for every accepted record.
// It is called from the workers and must be safe for concurrent use.
func WithAcceptHook(fn func(*model.Record)) RunnerOption {
	return func(r *Runner) {
		r.onAccept = fn
	}
}

// NewRunner creates a Runner. A nil sink discards accepted records.
func NewRunner(p *Pipeline, sink Sink, opts ...RunnerOption) *Runner {
	if sink == nil {
		sink = MultiSink{}
	}

	r := &Runner{
		pipeline: p,
		sink:     sink,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run processes every record received on in until the channel is closed
// and returns the run summary. Rejections and sink failures are counted,
// never returned. Run returns ctx.Err() when ctx was cancelled before the
// stream ended; the summary still reflects the work done.
func (r *Runner) Run(ctx context.Context, in <-chan *model.RawRecord) (*Summary, error) {
	start := time.Now()
	r.summary = newSummary()

	r.logger.Info("pipeline started", "workers", r.workers)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for raw := range in {
		g.Go(func() error {
			r.handle(ctx, raw)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	summary := r.snapshot()
	summary.Elapsed = time.Since(start)

	r.logger.Info("pipeline finished",
		"processed", summary.Processed,
		"accepted", summary.Accepted,
		"rejected", summary.RejectedTotal(),
		"sink_failures", summary.SinkFailures,
		"elapsed", summary.Elapsed,
	)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("pipeline interrupted: %w", err)
	}
	return summary, nil
}

func (r *Runner) handle(ctx context.Context, raw *model.RawRecord) {
	rec, err := r.pipeline.Process(ctx, raw)
	if err != nil {
		var rejection *Rejection
		r.mu.Lock()
		r.summary.Processed++
		if errors.As(err, &rejection) {
			r.summary.Rejected[rejection.Reason]++
		} else {
			r.summary.Failed++
		}
		r.mu.Unlock()

		if rejection == nil {
			r.logger.Warn("record failed", "url", raw.DetailURL, "error", err)
		}
		return
	}

	sinkErr := r.sink.Put(ctx, rec)

	r.mu.Lock()
	r.summary.Processed++
	r.summary.Accepted++
	if sinkErr != nil {
		r.summary.SinkFailures++
	}
	for _, c := range rec.Categories {
		r.summary.Categories[c]++
	}
	r.summary.Difficulties[string(rec.Difficulty)]++
	r.mu.Unlock()

	if sinkErr != nil {
		r.logger.Error("sink failed",
			"resource_id", rec.ResourceID,
			"url", rec.URL,
			"error", sinkErr,
		)
		return
	}

	if r.onAccept != nil {
		r.onAccept(rec)
	}
}

func (r *Runner) snapshot() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := *r.summary
	s.Rejected = maps.Clone(r.summary.Rejected)
	s.Categories = maps.Clone(r.summary.Categories)
	s.Difficulties = maps.Clone(r.summary.Difficulties)
	return &s
}
