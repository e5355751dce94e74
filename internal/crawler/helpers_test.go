package crawler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// catalogPage renders an index page holding n entries and an optional
// next link.
func catalogPage(slug string, page, n int, next string) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<article class="js-index-item">
  <div class="item-title"><a href="/courses/%s-%d-%d">Resource %s %d %d</a></div>
  <div class="abstract-short"><p>Description of resource %d on page %d.</p></div>
</article>`, slug, page, i, slug, page, i, i, page)
	}
	if next != "" {
		fmt.Fprintf(&b, `<a rel="next" href="%s">Next</a>`, next)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

// catalog is a fake catalog server. pages maps a facet slug to its page count.
type catalog struct {
	*httptest.Server

	pages          map[string]int
	entriesPerPage int

	mu       sync.Mutex
	requests []string
}

func newCatalog(t *testing.T, pages map[string]int) *catalog {
	t.Helper()

	c := &catalog{pages: pages, entriesPerPage: 2}

	mux := http.NewServeMux()
	mux.HandleFunc("/courses/", func(w http.ResponseWriter, r *http.Request) {
		slug := r.URL.Query().Get("f.general_subject")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}

		c.mu.Lock()
		c.requests = append(c.requests, fmt.Sprintf("%s:%d", slug, page))
		c.mu.Unlock()

		total, ok := c.pages[slug]
		if !ok || page > total {
			http.NotFound(w, r)
			return
		}

		next := ""
		if page < total {
			next = fmt.Sprintf("?f.general_subject=%s&page=%d", slug, page+1)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(catalogPage(slug, page, c.entriesPerPage, next))) //nolint:errcheck
	})

	c.Server = httptest.NewServer(mux)
	t.Cleanup(c.Close)

	return c
}

// requestsFor returns the page numbers requested for slug, in arrival order.
func (c *catalog) requestsFor(slug string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, r := range c.requests {
		if strings.HasPrefix(r, slug+":") {
			out = append(out, strings.TrimPrefix(r, slug+":"))
		}
	}
	return out
}
