package config

import (
	"time"

	"github.com/nao1215/oercrawl/internal/extract"
	"github.com/nao1215/oercrawl/internal/model"
)

// CrawlSection holds the crawl settings of the configuration file.
// Nil or empty fields keep the current value.
type CrawlSection struct {
	Concurrency int            `yaml:"concurrency,omitempty"`
	PerHost     int            `yaml:"perHost,omitempty"`
	Delay       *time.Duration `yaml:"delay,omitempty"`
	Timeout     time.Duration  `yaml:"timeout,omitempty"`
	Retries     *int           `yaml:"retries,omitempty"`
	Robots      *bool          `yaml:"robots,omitempty"`
	MaxPages    *int           `yaml:"maxPages,omitempty"`
	BaseURL     string         `yaml:"baseURL,omitempty"`
	BatchSize   int            `yaml:"batchSize,omitempty"`
	UserAgents  []string       `yaml:"userAgents,omitempty"`
}

// PipelineSection holds the record pipeline settings.
type PipelineSection struct {
	Workers   int    `yaml:"workers,omitempty"`
	ContextID string `yaml:"contextID,omitempty"`
}

// OutputSection holds the output settings.
type OutputSection struct {
	// Feed is the feed path template. "-" disables the feed.
	Feed string `yaml:"feed,omitempty"`

	// DBDir is the database directory. "-" disables the database.
	DBDir string `yaml:"dbDir,omitempty"`

	Summary string `yaml:"summary,omitempty"`
}

// File represents the structure of the .oercrawl.yaml configuration file.
type File struct {
	Crawl    CrawlSection    `yaml:"crawl,omitempty"`
	Pipeline PipelineSection `yaml:"pipeline,omitempty"`
	Output   OutputSection   `yaml:"output,omitempty"`

	// Facets replaces the default facet list when not empty.
	Facets []model.Facet `yaml:"facets,omitempty"`

	// KeywordFacets appends the built-in keyword facets.
	KeywordFacets bool `yaml:"keywordFacets,omitempty"`

	// Selectors overrides individual extraction selectors.
	Selectors extract.Selectors `yaml:"selectors,omitempty"`
}

// disabled is the value that turns an output off in the configuration file.
const disabled = "-"

// Apply copies every value set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	c := f.Crawl
	if c.Concurrency != 0 {
		cfg.Concurrency = c.Concurrency
	}
	if c.PerHost != 0 {
		cfg.PerHost = c.PerHost
	}
	if c.Delay != nil {
		cfg.HostDelay = *c.Delay
	}
	if c.Timeout != 0 {
		cfg.Timeout = c.Timeout
	}
	if c.Retries != nil {
		cfg.MaxRetries = *c.Retries
	}
	if c.Robots != nil {
		cfg.Robots = *c.Robots
	}
	if c.MaxPages != nil {
		cfg.MaxPagesPerFacet = *c.MaxPages
	}
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.BatchSize != 0 {
		cfg.BatchSize = c.BatchSize
	}
	if len(c.UserAgents) > 0 {
		cfg.UserAgents = c.UserAgents
	}

	if f.Pipeline.Workers != 0 {
		cfg.Workers = f.Pipeline.Workers
	}
	if f.Pipeline.ContextID != "" {
		cfg.ContextID = f.Pipeline.ContextID
	}

	switch f.Output.Feed {
	case "":
	case disabled:
		cfg.FeedEnabled = false
	default:
		cfg.FeedEnabled = true
		cfg.FeedTemplate = f.Output.Feed
	}
	switch f.Output.DBDir {
	case "":
	case disabled:
		cfg.SaveToDB = false
	default:
		cfg.SaveToDB = true
		cfg.DBDir = f.Output.DBDir
	}
	if f.Output.Summary != "" {
		cfg.SummaryFile = f.Output.Summary
	}

	if len(f.Facets) > 0 {
		cfg.Facets = f.Facets
	}
	if f.KeywordFacets {
		cfg.Facets = append(append([]model.Facet(nil), cfg.Facets...), model.KeywordFacets()...)
	}

	cfg.Selectors = cfg.Selectors.Merge(f.Selectors)
}
