package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/oercrawl/internal/model"
)

// ErrRejected matches every *Rejection.
var ErrRejected = errors.New("record rejected")

// Rejection reasons.
const (
	ReasonTitleMissing        = "title_missing"
	ReasonTitleTooShort       = "title_too_short"
	ReasonDescriptionMissing  = "description_missing"
	ReasonDescriptionTooShort = "description_too_short"
)

// Rejection is returned by a stage that drops the item.
type Rejection struct {
	Stage  string
	Reason string
}

// Error implements error.
func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected by %s: %s", r.Stage, r.Reason)
}

// Is makes errors.Is(err, ErrRejected) true for any Rejection.
func (r *Rejection) Is(target error) bool {
	return target == ErrRejected
}

// Item is the unit of work flowing through the stages.
// Raw is set until the clean stage builds Record, and nil afterwards.
type Item struct {
	Raw    *model.RawRecord
	Record *model.Record
}

// Stage is one step of the pipeline. It returns a *Rejection to drop the
// item; any other error aborts processing of the item as well.
type Stage interface {
	Name() string
	Process(ctx context.Context, item *Item) error
}

// Pipeline runs the stages in order.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithStages replaces the stage list.
func WithStages(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.stages = stages
	}
}

// New creates a Pipeline with DefaultStages unless WithStages is given.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: DefaultStages(StageConfig{}),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// DefaultStages returns validate, clean, enrich, categorize and score.
func DefaultStages(cfg StageConfig) []Stage {
	return []Stage{
		ValidateStage{},
		CleanStage{ContextID: cfg.ContextID},
		EnrichStage{Now: cfg.Now},
		CategorizeStage{},
		ScoreStage{},
	}
}

// StageConfig parameterizes DefaultStages.
type StageConfig struct {
	// ContextID is stamped on every record built by the clean stage.
	ContextID string

	// Now stamps ProcessedAt. Nil means time.Now.
	Now Clock
}

// Process runs raw through every stage and returns the finished record.
// A rejected record yields an error matching ErrRejected.
func (p *Pipeline) Process(ctx context.Context, raw *model.RawRecord) (*model.Record, error) {
	if raw == nil {
		return nil, errors.New("nil raw record")
	}

	item := &Item{Raw: raw}
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := stage.Process(ctx, item); err != nil {
			var rejection *Rejection
			if errors.As(err, &rejection) {
				p.logger.Info("record rejected",
					"stage", rejection.Stage,
					"reason", rejection.Reason,
					"url", raw.DetailURL,
				)
				return nil, err
			}
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
	}

	if item.Record == nil {
		return nil, errors.New("no stage built a record")
	}
	return item.Record, nil
}

// StageNames returns the stage names in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name()
	}
	return names
}
