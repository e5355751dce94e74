package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/oercrawl/internal/model"
)

// ErrUnusable is returned when an entry lacks a required field.
// It is an expected filtering outcome, not a failure of the page.
var ErrUnusable = errors.New("entry unusable")

// ErrInvalidSelector is returned by Selectors.Validate.
var ErrInvalidSelector = errors.New("invalid selector")

// Extractor builds RawRecords from catalog entry fragments.
type Extractor struct {
	selectors Selectors

	// now stamps ExtractedAt.
	now func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSelectors replaces the selector table.
func WithSelectors(s Selectors) Option {
	return func(e *Extractor) {
		e.selectors = s
	}
}

// WithClock sets the clock used for ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// New creates an Extractor using DefaultSelectors unless overridden.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		selectors: DefaultSelectors(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Selectors returns the selector table in use.
func (e *Extractor) Selectors() Selectors {
	return e.selectors
}

// Extract builds a RawRecord from one entry fragment found on page.
// It returns an error wrapping ErrUnusable when the title or the detail
// URL is missing. Optional fields never cause an error.
func (e *Extractor) Extract(entry *goquery.Selection, page *url.URL) (*model.RawRecord, error) {
	s := e.selectors

	titleSel := find(entry, s.Title).First()
	title := titleSel.Text()
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrUnusable)
	}

	href, _ := titleSel.Attr("href")
	detailURL := ResolveURL(page, href)
	if detailURL == "" {
		return nil, fmt.Errorf("%w: missing detail url for %q", ErrUnusable, strings.TrimSpace(title))
	}

	rec := &model.RawRecord{
		Title:            title,
		DetailURL:        detailURL,
		DescriptionLong:  firstText(entry, s.DescriptionLong),
		DescriptionShort: firstText(entry, s.DescriptionShort),
		LicenseText:      firstText(entry, s.LicenseText),
		LicenseHints:     attrs(entry, s.LicenseIcons, "class"),
		Subjects:         texts(entry, s.Subjects),
		ResourceType:     firstText(entry, s.MaterialType),
		Provider:         firstText(entry, s.Provider),
		RatingText:       firstText(entry, s.Rating),
		ExtractedAt:      e.now(),
	}
	rec.Rating = ParseRating(rec.RatingText)
	if page != nil {
		rec.OriginPageURL = page.String()
	}

	if src, ok := find(entry, s.Image).First().Attr("src"); ok {
		rec.ImageURL = ResolveURL(page, src)
	}

	e.applyMetadata(entry, rec)

	if strings.TrimSpace(rec.Author) == "" {
		rec.Author = firstText(entry, s.AuthorFallback)
	}

	return rec, nil
}

// applyMetadata scans label/value pairs and fills the fields the
// dedicated selectors left empty.
func (e *Extractor) applyMetadata(entry *goquery.Selection, rec *model.RawRecord) {
	s := e.selectors
	if s.MetaLabel == "" || s.MetaValue == "" {
		return
	}

	entry.Find(s.MetaLabel).Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered(s.MetaValue)
		if dd.Length() == 0 {
			return
		}

		label := strings.ToLower(strings.TrimSpace(dt.Text()))
		label = strings.TrimSuffix(label, ":")

		switch {
		case strings.Contains(label, "author"):
			if strings.TrimSpace(rec.Author) == "" {
				rec.Author = dd.Text()
			}
		case strings.Contains(label, "subject"):
			if len(rec.Subjects) == 0 {
				rec.Subjects = valueList(dd)
			}
		case strings.Contains(label, "material type"):
			if strings.TrimSpace(rec.ResourceType) == "" {
				rec.ResourceType = firstOf(valueList(dd))
			}
		case strings.Contains(label, "level"):
			if len(rec.EducationLevels) == 0 {
				rec.EducationLevels = valueList(dd)
			}
		case strings.Contains(label, "provider"):
			if strings.TrimSpace(rec.Provider) == "" {
				rec.Provider = firstOf(valueList(dd))
			}
		case strings.Contains(label, "date added"):
			if rec.PublicationDate == "" {
				rec.PublicationDate = dd.Text()
			}
		}
	})
}

// ResolveURL resolves href against base. It returns "" for empty hrefs,
// fragment-only links and non-navigational schemes.
func ResolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}

	return base.ResolveReference(u).String()
}

// find is Selection.Find that tolerates an empty selector.
func find(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return sel.Slice(0, 0)
	}
	return sel.Find(selector)
}

func firstText(sel *goquery.Selection, selector string) string {
	return find(sel, selector).First().Text()
}

func texts(sel *goquery.Selection, selector string) []string {
	return find(sel, selector).Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
}

func attrs(sel *goquery.Selection, selector, attr string) []string {
	var out []string
	find(sel, selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			out = append(out, v)
		}
	})
	return out
}

// valueList returns the anchor texts of a value element, or its own text
// when it contains no anchors.
func valueList(dd *goquery.Selection) []string {
	if links := dd.Find("a"); links.Length() > 0 {
		return links.Map(func(_ int, s *goquery.Selection) string {
			return s.Text()
		})
	}
	return []string{dd.Text()}
}

func firstOf(values []string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
