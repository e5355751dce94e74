package model

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// RawRecord is the field extractor's output for one catalog entry.
// Values are exactly what the markup contained: whitespace is not collapsed
// and an empty string means the selector returned nothing.
//
// A RawRecord is built once by the extractor, consumed once by the item
// pipeline and not referenced after the clean stage.
type RawRecord struct {
	// Title and DetailURL are required; the extractor never builds a
	// RawRecord without them.
	Title     string
	DetailURL string

	DescriptionShort string
	DescriptionLong  string
	Author           string
	Provider         string
	ResourceType     string
	PublicationDate  string
	ImageURL         string

	// LicenseText is the explicit license string shown on the entry.
	LicenseText string

	// LicenseHints holds the class tokens of the license icons,
	// e.g. ["cc", "cc-by", "cc-nc"]. It is the fallback license signal.
	LicenseHints []string

	Subjects        []string
	EducationLevels []string

	// RatingText is the free-text rating phrase and Rating the number
	// parsed out of it (0 when absent or unparseable).
	RatingText string
	Rating     float64

	// OriginPageURL is the index page the entry was found on.
	OriginPageURL string

	// Facet is the facet whose pagination produced the page.
	Facet Facet

	ExtractedAt time.Time
}

// Description returns the long description when present, otherwise the
// short one. It returns "" when neither exists.
func (r *RawRecord) Description() string {
	if strings.TrimSpace(r.DescriptionLong) != "" {
		return r.DescriptionLong
	}
	return r.DescriptionShort
}

// Difficulty is the derived difficulty tier of a record.
type Difficulty string

// Difficulty tiers.
const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// Record is a normalized and enriched catalog record.
//
// Optional string fields are pointers: nil is the "no value" sentinel, an
// empty string never appears. Slices contain only non-empty trimmed strings.
type Record struct {
	// ResourceID is the natural identifier of the resource in the catalog.
	ResourceID string `json:"resource_id"`

	// ContextID associates the resource with a course context.
	// Empty means no context.
	ContextID string `json:"context_id,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`

	OriginPageURL   *string `json:"origin_page_url"`
	Author          *string `json:"author"`
	Provider        *string `json:"provider"`
	ResourceType    *string `json:"resource_type"`
	PublicationDate *string `json:"publication_date"`
	ImageURL        *string `json:"image_url"`
	LicenseText     *string `json:"license_text"`

	LicenseHints    []string `json:"license_hints,omitempty"`
	Subjects        []string `json:"subjects"`
	EducationLevels []string `json:"education_levels"`

	Rating float64 `json:"rating"`

	// SubjectArea is the display name of the facet the record was crawled under.
	SubjectArea string `json:"subject_area,omitempty"`
	FacetSlug   string `json:"facet_slug,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`

	// Fields below are derived by the pipeline.
	LicenseNormalized string     `json:"license_normalized"`
	Difficulty        Difficulty `json:"difficulty"`
	Categories        []string   `json:"categories"`
	QualityScore      int        `json:"quality_score"`
	ProcessedAt       time.Time  `json:"processed_at"`
}

// HasCategory reports whether the record was tagged with category.
func (r *Record) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ResourceID derives the natural identifier from a resource detail URL.
// It is the lowercased host followed by the path, without scheme, query,
// a leading "www." or a trailing "/view", so
// "https://www.oercommons.org/courses/intro-to-algebra/view" yields
// "oercommons.org/courses/intro-to-algebra". URLs without a path fall back
// to the canonical URL string.
func ResourceID(detailURL string) string {
	u, err := url.Parse(strings.TrimSpace(detailURL))
	if err != nil {
		return strings.TrimSpace(detailURL)
	}

	p := strings.TrimRight(path.Clean("/"+u.Path), "/")
	p = strings.TrimSuffix(p, "/view")
	if p == "" {
		return CanonicalURL(detailURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + p
}

// CanonicalURL normalizes a URL for identity and loop detection.
// The fragment is dropped, scheme and host are lowercased, query
// parameters are sorted and an empty path becomes "/".
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String()
}
