package crawler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Default request settings.
const (
	// DefaultAccept is the Accept header sent with every request.
	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// DefaultAcceptLanguage is the Accept-Language header sent with every request.
	DefaultAcceptLanguage = "en"

	// DefaultUserAgent is used when no User-Agent list is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// sniffLen is how many bytes are peeked for charset detection.
	sniffLen = 1024
)

// Fetcher fetches one URL.
// Implementations return *StatusError for non-2xx responses.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Page, error)
}

// HTTPFetcher is the net/http Fetcher.
type HTTPFetcher struct {
	client *http.Client

	// headers are sent with every request. User-Agent is set separately.
	headers http.Header

	// userAgents rotates round-robin; a single entry disables rotation.
	userAgents []string
	next       atomic.Uint64

	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgents sets the User-Agent list. More than one entry enables
// round-robin rotation across requests.
func WithUserAgents(agents ...string) FetcherOption {
	return func(f *HTTPFetcher) {
		if len(agents) > 0 {
			f.userAgents = agents
		}
	}
}

// WithHeader sets an additional header sent with every request.
func WithHeader(key, value string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers.Set(key, value)
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}

	f := &HTTPFetcher{
		client:      client,
		headers:     make(http.Header),
		userAgents:  []string{DefaultUserAgent},
		maxBodySize: DefaultMaxBodySize,
	}
	f.headers.Set("Accept", DefaultAccept)
	f.headers.Set("Accept-Language", DefaultAcceptLanguage)

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// UserAgent returns the User-Agent for the next request.
func (f *HTTPFetcher) UserAgent() string {
	n := f.next.Add(1) - 1
	return f.userAgents[n%uint64(len(f.userAgents))]
}

// Fetch performs a GET request and returns the page decoded to UTF-8.
func (f *HTTPFetcher) Fetch(ctx context.Context, r Request) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range f.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", f.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, sniffLen))
		return nil, &StatusError{URL: r.URL, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, f.maxBodySize, r.URL)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := decodeBody(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		Request:     r,
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// decodeBody converts the body to UTF-8 using the Content-Type charset,
// a <meta> declaration or content sniffing, in that order.
func decodeBody(r io.Reader, contentType string) ([]byte, error) {
	br := bufio.NewReaderSize(r, sniffLen)

	// Peek returns what is available along with io.EOF on short bodies.
	head, _ := br.Peek(sniffLen)
	enc, _, _ := charset.DetermineEncoding(head, contentType)

	return io.ReadAll(transform.NewReader(br, enc.NewDecoder()))
}
