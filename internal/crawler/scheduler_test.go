package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/oercrawl/internal/extract"
	"github.com/nao1215/oercrawl/internal/model"
)

func subject(slug string) model.Facet {
	return model.Facet{Slug: slug, Name: slug, Param: model.FacetParamSubject}
}

func newTestScheduler(c *catalog, opts ...SchedulerOption) *Scheduler {
	base := []SchedulerOption{
		WithBaseURL(c.URL + "/courses/"),
		WithHostDelay(0),
	}
	return NewScheduler(NewHTTPFetcher(c.Client()), NewParser(extract.New()), append(base, opts...)...)
}

func drain(ch <-chan *model.RawRecord) []*model.RawRecord {
	var out []*model.RawRecord
	for rec := range ch {
		out = append(out, rec)
	}
	return out
}

// TestSchedulerRun tests facet pagination and isolation.
func TestSchedulerRun(t *testing.T) {
	t.Parallel()

	t.Run("walks every page of every facet in order", func(t *testing.T) {
		t.Parallel()

		c := newCatalog(t, map[string]int{"mathematics": 3, "physics": 2})
		s := newTestScheduler(c)

		records := drain(s.Run(context.Background(), []model.Facet{subject("mathematics"), subject("physics")}))
		if len(records) != 10 {
			t.Errorf("expected 10 records, got %d", len(records))
		}

		if diff := cmp.Diff([]string{"1", "2", "3"}, c.requestsFor("mathematics")); diff != "" {
			t.Errorf("mathematics requests mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"1", "2"}, c.requestsFor("physics")); diff != "" {
			t.Errorf("physics requests mismatch (-want +got):\n%s", diff)
		}

		perFacet := map[string]int{}
		for _, rec := range records {
			perFacet[rec.Facet.Slug]++
		}
		if perFacet["mathematics"] != 6 || perFacet["physics"] != 4 {
			t.Errorf("unexpected per-facet counts %v", perFacet)
		}

		stats := s.Stats()
		if stats.Pages != 5 || stats.Records != 10 || stats.Failed != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}
		if stats.Facets["mathematics"].Pages != 3 {
			t.Errorf("unexpected facet stats %+v", stats.Facets["mathematics"])
		}
	})

	t.Run("a failing facet does not stop the others", func(t *testing.T) {
		t.Parallel()

		// "missing" is not served and answers 404 on its first page.
		c := newCatalog(t, map[string]int{"history": 2})
		s := newTestScheduler(c)

		records := drain(s.Run(context.Background(), []model.Facet{subject("missing"), subject("history")}))
		if len(records) != 4 {
			t.Errorf("expected 4 records, got %d", len(records))
		}

		stats := s.Stats()
		if stats.Failed != 1 {
			t.Errorf("expected 1 failed page, got %d", stats.Failed)
		}
		if stats.Facets["missing"].Failed != 1 {
			t.Errorf("unexpected stats for failing facet %+v", stats.Facets["missing"])
		}
		if diff := cmp.Diff([]string{"1"}, c.requestsFor("missing")); diff != "" {
			t.Errorf("failing facet should not advance (-want +got):\n%s", diff)
		}
	})

	t.Run("max pages per facet", func(t *testing.T) {
		t.Parallel()

		c := newCatalog(t, map[string]int{"arts": 5})
		s := newTestScheduler(c, WithMaxPagesPerFacet(2))

		records := drain(s.Run(context.Background(), []model.Facet{subject("arts")}))
		if len(records) != 4 {
			t.Errorf("expected 4 records, got %d", len(records))
		}
		if diff := cmp.Diff([]string{"1", "2"}, c.requestsFor("arts")); diff != "" {
			t.Errorf("requests mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("pagination loop is cut", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(catalogPage("loop", 1, 1, "/courses/?b=1&a=2#top"))) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		facet := model.Facet{Slug: "loop", URL: srv.URL + "/courses/?a=2&b=1"}
		s := NewScheduler(NewHTTPFetcher(srv.Client()), NewParser(extract.New()), WithHostDelay(0))

		records := drain(s.Run(context.Background(), []model.Facet{facet}))
		if hits.Load() != 1 {
			t.Errorf("expected a single request, got %d", hits.Load())
		}
		if len(records) != 1 {
			t.Errorf("expected 1 record, got %d", len(records))
		}
	})

	t.Run("robots disallow skips without fetching", func(t *testing.T) {
		t.Parallel()

		var pageHits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				_, _ = w.Write([]byte("User-agent: *\nDisallow: /courses/\n")) //nolint:errcheck
				return
			}
			pageHits.Add(1)
			_, _ = w.Write([]byte(catalogPage("x", 1, 1, ""))) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		s := NewScheduler(NewHTTPFetcher(srv.Client()), NewParser(extract.New()),
			WithBaseURL(srv.URL+"/courses/"),
			WithHostDelay(0),
			WithRobots(NewRobotsChecker(srv.Client(), "oercrawl", 0)),
		)

		records := drain(s.Run(context.Background(), []model.Facet{subject("x")}))
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
		if pageHits.Load() != 0 {
			t.Errorf("expected no page fetch, got %d", pageHits.Load())
		}
		if s.Stats().Disallowed != 1 {
			t.Errorf("expected 1 disallowed request, got %+v", s.Stats())
		}
	})

	t.Run("robots fetch is shared and paced with page fetches", func(t *testing.T) {
		t.Parallel()

		var robotsHits, inFlight, peak atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)

			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				_, _ = w.Write([]byte("User-agent: *\nAllow: /\n")) //nolint:errcheck
				return
			}
			slug := r.URL.Query().Get("f.general_subject")
			_, _ = w.Write([]byte(catalogPage(slug, 1, 1, ""))) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		s := NewScheduler(NewHTTPFetcher(srv.Client()), NewParser(extract.New()),
			WithBaseURL(srv.URL+"/courses/"),
			WithPerHostConcurrency(1),
			WithHostDelay(10*time.Millisecond),
			WithRobots(NewRobotsChecker(srv.Client(), "oercrawl", 0)),
		)

		var facets []model.Facet
		for _, slug := range []string{"a", "b", "c", "d", "e", "f"} {
			facets = append(facets, subject(slug))
		}

		records := drain(s.Run(context.Background(), facets))
		if len(records) != len(facets) {
			t.Errorf("expected %d records, got %d", len(facets), len(records))
		}
		if robotsHits.Load() != 1 {
			t.Errorf("expected robots.txt to be fetched once, got %d", robotsHits.Load())
		}
		if peak.Load() > 1 {
			t.Errorf("expected at most 1 request in flight to the host, saw %d", peak.Load())
		}
	})

	t.Run("cancelled context closes the stream", func(t *testing.T) {
		t.Parallel()

		c := newCatalog(t, map[string]int{"biology": 3})
		s := newTestScheduler(c)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan struct{})
		go func() {
			drain(s.Run(ctx, []model.Facet{subject("biology")}))
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("stream was not closed after cancellation")
		}
		if len(c.requestsFor("biology")) != 0 {
			t.Errorf("expected no requests, got %v", c.requestsFor("biology"))
		}
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(catalogPage("retry", 1, 2, ""))) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		s := NewScheduler(NewHTTPFetcher(srv.Client()), NewParser(extract.New()),
			WithBaseURL(srv.URL+"/courses/"),
			WithHostDelay(0),
			WithRetryPolicy(Backoff{MaxRetries: 2, InitialDelay: time.Millisecond}),
		)

		records := drain(s.Run(context.Background(), []model.Facet{subject("retry")}))
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", calls.Load())
		}
	})

	t.Run("page hook sees every page", func(t *testing.T) {
		t.Parallel()

		c := newCatalog(t, map[string]int{"chemistry": 2})

		var mu sync.Mutex
		var visits []PageVisit
		s := newTestScheduler(c, WithPageHook(func(v PageVisit) {
			mu.Lock()
			visits = append(visits, v)
			mu.Unlock()
		}))

		drain(s.Run(context.Background(), []model.Facet{subject("chemistry")}))

		mu.Lock()
		defer mu.Unlock()
		if len(visits) != 2 {
			t.Fatalf("expected 2 visits, got %d", len(visits))
		}
		for i, v := range visits {
			if v.Page != i+1 || v.StatusCode != http.StatusOK || v.Records != 2 || v.Err != nil {
				t.Errorf("unexpected visit %d: %+v", i, v)
			}
		}
	})
}

// TestSchedulerSeedURL tests seed URL construction.
func TestSchedulerSeedURL(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil)

	t.Run("subject seed", func(t *testing.T) {
		t.Parallel()

		got, err := s.SeedURL(subject("mathematics"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "https://oercommons.org/courses/?batch_size=20&f.general_subject=mathematics&sort_by=search&view_mode=summary"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("keyword seed", func(t *testing.T) {
		t.Parallel()

		got, err := s.SeedURL(model.Facet{Slug: "economics", Param: model.FacetParamKeyword})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(got, "f.keyword=economics") {
			t.Errorf("expected keyword parameter, got %q", got)
		}
	})

	t.Run("explicit url wins", func(t *testing.T) {
		t.Parallel()

		got, err := s.SeedURL(model.Facet{Slug: "x", URL: "https://example.org/list"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "https://example.org/list" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("invalid base url", func(t *testing.T) {
		t.Parallel()

		bad := NewScheduler(nil, nil, WithBaseURL("://nope"))
		if _, err := bad.SeedURL(subject("x")); err == nil {
			t.Error("expected error")
		}
	})
}
