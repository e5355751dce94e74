package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/oercrawl/internal/extract"
	"github.com/nao1215/oercrawl/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "oercrawl"

	// DefaultConcurrency is the global cap on in-flight requests.
	DefaultConcurrency = 16

	// DefaultPerHost is the cap on in-flight requests to a single host.
	DefaultPerHost = 8

	// DefaultHostDelay is the minimum spacing between requests to one host.
	DefaultHostDelay = 1 * time.Second

	// DefaultTimeout bounds a single HTTP request, including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryInitialDelay is the wait before the first retry.
	DefaultRetryInitialDelay = 500 * time.Millisecond

	// DefaultRetryMaxDelay caps the wait between retries.
	DefaultRetryMaxDelay = 10 * time.Second

	// DefaultWorkers is the number of records processed concurrently.
	DefaultWorkers = 4

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultBatchSize is the number of entries requested per listing page.
	DefaultBatchSize = 20

	// DefaultBaseURL is the catalog listing subject seeds are built on.
	DefaultBaseURL = "https://oercommons.org/courses/"

	// DefaultFeedTemplate names the JSON feed. {time} is replaced with the
	// run start time and {run} with the run id.
	DefaultFeedTemplate = "oer_feed_{time}.json"
)

// DefaultUserAgents is the User-Agent rotation used when none is configured.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:89.0) Gecko/20100101 Firefox/89.0",
	}
}

// Config holds all configuration options for a crawl.
// It is populated from defaults, then the configuration file, then CLI flags,
// and passed explicitly to the components that need it.
type Config struct {
	// Facets is the list of facets to crawl. Each facet is seeded once.
	Facets []model.Facet

	// Concurrency is the global cap on in-flight requests.
	Concurrency int

	// PerHost is the cap on in-flight requests per host.
	PerHost int

	// HostDelay is the minimum delay between requests to the same host.
	// Zero disables the delay.
	HostDelay time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures.
	// Zero means every page is fetched exactly once.
	MaxRetries int

	// RetryInitialDelay is the wait before the first retry.
	RetryInitialDelay time.Duration

	// RetryMaxDelay caps the wait between retries.
	RetryMaxDelay time.Duration

	// Robots enables the robots.txt gate.
	Robots bool

	// MaxPagesPerFacet limits the pages fetched per facet. Zero is unlimited.
	MaxPagesPerFacet int

	// BaseURL is the catalog listing subject seeds are built on.
	BaseURL string

	// BatchSize is sent as batch_size on every subject seed.
	BatchSize int

	// UserAgents is the User-Agent rotation.
	UserAgents []string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Selectors overrides the extraction selector table.
	Selectors extract.Selectors

	// Workers is the number of records processed concurrently.
	Workers int

	// ContextID scopes stored resources, e.g. to a course.
	// Empty means resources are stored without a context.
	ContextID string

	// FeedEnabled writes accepted records to a JSON feed file.
	FeedEnabled bool

	// FeedTemplate is the feed file path template.
	FeedTemplate string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/oercrawl on Linux).
	DBDir string

	// SaveToDB stores accepted records and run bookkeeping in the database.
	SaveToDB bool

	// SummaryFile is the path the Markdown run summary is written to.
	// Empty means stdout.
	SummaryFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON lines.
	LogJSON bool

	// ConfigFilePath is the configuration file given on the command line.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// Every subject area is selected and both outputs are enabled.
func NewConfig() *Config {
	return &Config{
		Facets:            model.SubjectAreas(),
		Concurrency:       DefaultConcurrency,
		PerHost:           DefaultPerHost,
		HostDelay:         DefaultHostDelay,
		Timeout:           DefaultTimeout,
		RetryInitialDelay: DefaultRetryInitialDelay,
		RetryMaxDelay:     DefaultRetryMaxDelay,
		BaseURL:           DefaultBaseURL,
		BatchSize:         DefaultBatchSize,
		UserAgents:        DefaultUserAgents(),
		MaxBodySize:       DefaultMaxBodySize,
		Selectors:         extract.DefaultSelectors(),
		Workers:           DefaultWorkers,
		FeedEnabled:       true,
		FeedTemplate:      DefaultFeedTemplate,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for oercrawl.
// On Linux: ~/.local/share/oercrawl
// On macOS: ~/Library/Application Support/oercrawl
// On Windows: %LOCALAPPDATA%\oercrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for oercrawl.
// On Linux: ~/.config/oercrawl
// On macOS: ~/Library/Application Support/oercrawl
// On Windows: %APPDATA%\oercrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// AllFacets returns the subject areas followed by the keyword facets.
func AllFacets() []model.Facet {
	return append(model.SubjectAreas(), model.KeywordFacets()...)
}

// SelectFacets replaces Facets with the facets named by slugs, looked up
// among AllFacets. The order of slugs is kept. An empty slugs list leaves
// Facets untouched.
func (c *Config) SelectFacets(slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}

	known := make(map[string]model.Facet)
	for _, f := range AllFacets() {
		known[f.Slug] = f
	}
	// Facets loaded from the configuration file may add custom slugs.
	for _, f := range c.Facets {
		known[f.Slug] = f
	}

	selected := make([]model.Facet, 0, len(slugs))
	for _, slug := range slugs {
		f, ok := known[slug]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFacet, slug)
		}
		selected = append(selected, f)
	}
	c.Facets = selected
	return nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Facets) == 0 {
		return ErrNoFacets
	}

	seen := make(map[string]bool, len(c.Facets))
	for _, f := range c.Facets {
		if f.Slug == "" {
			return fmt.Errorf("%w: facet %q has no slug", ErrInvalidFacet, f.Name)
		}
		if seen[f.Slug] {
			return fmt.Errorf("%w: %q", ErrDuplicateFacet, f.Slug)
		}
		seen[f.Slug] = true
	}

	if c.Concurrency <= 0 || c.PerHost <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.HostDelay < 0 || c.RetryInitialDelay < 0 || c.RetryMaxDelay < 0 {
		return ErrInvalidDelay
	}

	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}

	if c.MaxPagesPerFacet < 0 {
		return ErrInvalidMaxPages
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if err := c.Selectors.Validate(); err != nil {
		return err
	}

	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}

	return nil
}
