package crawler

import (
	"net/url"

	"github.com/nao1215/oercrawl/internal/model"
)

// Request is one index page to fetch for a facet.
type Request struct {
	// URL is the absolute page URL.
	URL string

	// Facet is the facet whose pagination produced this request.
	Facet model.Facet

	// Page is the 1-based position of the page in the facet's pagination.
	Page int
}

// Page is a fetched index page.
type Page struct {
	// Request is the request that produced this page.
	Request Request

	// URL is the final URL after redirects. Relative links resolve against it.
	URL *url.URL

	StatusCode  int
	ContentType string

	// Body is the response body decoded to UTF-8.
	Body []byte
}

// PageResult is what the parser derives from one page.
type PageResult struct {
	// Records holds one RawRecord per usable entry, in document order.
	Records []*model.RawRecord

	// Skipped counts entries dropped as unusable.
	Skipped int

	// Next is the follow-up request, or nil when the page is the last one
	// of its facet.
	Next *Request
}
