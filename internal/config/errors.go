package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.SelectFacets. Callers match them with errors.Is.
var (
	// ErrNoFacets is returned when no facet is selected.
	ErrNoFacets = errors.New("no facets selected: configure facets or use --facet")

	// ErrUnknownFacet is returned when a facet slug is not known.
	ErrUnknownFacet = errors.New("unknown facet")

	// ErrInvalidFacet is returned when a configured facet has no slug.
	ErrInvalidFacet = errors.New("invalid facet")

	// ErrDuplicateFacet is returned when the same facet is selected twice.
	ErrDuplicateFacet = errors.New("duplicate facet")

	// ErrInvalidConcurrency is returned when a concurrency cap is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when a delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidBatchSize is returned when the listing batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrNoDBDir is returned when the database is enabled without a directory.
	ErrNoDBDir = errors.New("database enabled but no database directory set")
)
