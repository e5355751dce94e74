package model

import "fmt"

// Facet parameters understood by the catalog's search pages.
const (
	// FacetParamSubject filters the catalog by general subject area.
	FacetParamSubject = "f.general_subject"

	// FacetParamKeyword filters the catalog by free keyword.
	FacetParamKeyword = "f.keyword"
)

// Facet is one subject or keyword partition of the crawl target.
// Each facet has its own seed request and follows its own pagination.
type Facet struct {
	// Slug is the value sent for Param, e.g. "life-science".
	Slug string `json:"slug" yaml:"slug"`

	// Name is the display name, e.g. "Life Science".
	// Records crawled under this facet carry it as their primary subject area.
	Name string `json:"name" yaml:"name"`

	// Param is the query parameter the slug is sent as.
	// Empty means FacetParamSubject.
	Param string `json:"param,omitempty" yaml:"param,omitempty"`

	// URL overrides the seed URL entirely when set.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// QueryParam returns the query parameter used for this facet.
func (f Facet) QueryParam() string {
	if f.Param == "" {
		return FacetParamSubject
	}
	return f.Param
}

// String returns a short human-readable form used in logs.
func (f Facet) String() string {
	if f.Name == "" {
		return f.Slug
	}
	return fmt.Sprintf("%s (%s)", f.Name, f.Slug)
}

// SubjectAreas lists the OER Commons general subject areas.
// The order is the order seeds are issued; completion order is not guaranteed.
func SubjectAreas() []Facet {
	return []Facet{
		{Slug: "applied-science", Name: "Applied Science"},
		{Slug: "arts-and-humanities", Name: "Arts and Humanities"},
		{Slug: "business-and-communication", Name: "Business and Communication"},
		{Slug: "career-and-technical-education", Name: "Career and Technical Education"},
		{Slug: "education", Name: "Education"},
		{Slug: "english-language-arts", Name: "English Language Arts"},
		{Slug: "history", Name: "History"},
		{Slug: "law", Name: "Law"},
		{Slug: "life-science", Name: "Life Science"},
		{Slug: "mathematics", Name: "Mathematics"},
		{Slug: "physical-science", Name: "Physical Science"},
		{Slug: "research-and-scholarship", Name: "Research and Scholarship"},
		{Slug: "social-science", Name: "Social Science"},
	}
}

// KeywordBrowseURL is the listing the keyword facets page through.
const KeywordBrowseURL = "https://www.oercommons.org/browse"

// KeywordFacets lists the keyword facets crawled alongside the subject
// areas. Their seeds point at the browse listing, not the course listing.
func KeywordFacets() []Facet {
	keywords := []struct{ slug, name string }{
		{"economics", "Economics"},
		{"mathematics", "Mathematics"},
		{"science", "Science"},
		{"programming", "Programming"},
	}

	facets := make([]Facet, len(keywords))
	for i, k := range keywords {
		facets[i] = Facet{
			Slug:  "keyword-" + k.slug,
			Name:  k.name,
			Param: FacetParamKeyword,
			URL:   KeywordBrowseURL + "?" + FacetParamKeyword + "=" + k.slug,
		}
	}
	return facets
}
