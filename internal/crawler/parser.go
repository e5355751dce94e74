package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/oercrawl/internal/extract"
)

// Parser turns a fetched index page into records and a next-page request.
type Parser struct {
	extractor *extract.Extractor
	logger    *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithParserLogger sets the logger used for skipped entries.
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a Parser around the given extractor.
func NewParser(extractor *extract.Extractor, opts ...ParserOption) *Parser {
	p := &Parser{
		extractor: extractor,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ParsePage extracts every entry on page and determines the next page.
// Unusable entries are counted in Skipped, not reported as errors.
// Any failure while walking the document, including a panic raised by a
// selector, is returned as ErrMalformedPage so only this page is lost.
func (p *Parser) ParsePage(page *Page) (result *PageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrMalformedPage, page.Request.URL, r)
		}
	}()

	base := page.URL
	if base == nil {
		base, err = url.Parse(page.Request.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPage, err)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPage, err)
	}

	sel := p.extractor.Selectors()
	result = &PageResult{}

	doc.Find(sel.Entry).Each(func(_ int, entry *goquery.Selection) {
		rec, err := p.extractor.Extract(entry, base)
		if err != nil {
			result.Skipped++
			level := slog.LevelDebug
			if !errors.Is(err, extract.ErrUnusable) {
				level = slog.LevelWarn
			}
			p.logger.Log(context.Background(), level, "entry skipped",
				"url", page.Request.URL,
				"reason", err,
			)
			return
		}
		rec.Facet = page.Request.Facet
		result.Records = append(result.Records, rec)
	})

	if next := NextLink(doc, base, sel.Next); next != "" {
		result.Next = &Request{
			URL:   next,
			Facet: page.Request.Facet,
			Page:  page.Request.Page + 1,
		}
	}

	return result, nil
}

// NextLink returns the resolved href of the first next-page selector that
// matches an element with a usable href, or "" when the page advertises
// no next page. Selectors are tried in order.
func NextLink(doc *goquery.Document, base *url.URL, selectors []string) string {
	for _, selector := range selectors {
		if selector == "" {
			continue
		}

		var next string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok {
				return true
			}
			next = extract.ResolveURL(base, href)
			return next == ""
		})

		if next != "" {
			return next
		}
	}

	return ""
}
