package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// TestHTTPFetcher tests request headers, status handling and decoding.
func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("sends default headers", func(t *testing.T) {
		t.Parallel()

		var got http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			_, _ = w.Write([]byte("<html></html>")) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		page, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), Request{URL: srv.URL + "/courses/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", page.StatusCode)
		}
		if got.Get("Accept-Language") != DefaultAcceptLanguage {
			t.Errorf("unexpected Accept-Language %q", got.Get("Accept-Language"))
		}
		if got.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected User-Agent %q", got.Get("User-Agent"))
		}
		if got.Get("Accept") != DefaultAccept {
			t.Errorf("unexpected Accept %q", got.Get("Accept"))
		}
	})

	t.Run("rotates user agents", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var agents []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			agents = append(agents, r.UserAgent())
			mu.Unlock()
		}))
		t.Cleanup(srv.Close)

		f := NewHTTPFetcher(srv.Client(), WithUserAgents("ua-a", "ua-b"), WithHeader("X-Test", "1"))
		for range 3 {
			if _, err := f.Fetch(context.Background(), Request{URL: srv.URL}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		mu.Lock()
		defer mu.Unlock()
		want := []string{"ua-a", "ua-b", "ua-a"}
		for i := range want {
			if agents[i] != want[i] {
				t.Errorf("request %d: expected %q, got %q", i, want[i], agents[i])
			}
		}
	})

	t.Run("non-2xx is a StatusError", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		t.Cleanup(srv.Close)

		_, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), Request{URL: srv.URL})
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Temporary() {
			t.Errorf("unexpected status error %+v", statusErr)
		}
	})

	t.Run("decodes declared charset to utf-8", func(t *testing.T) {
		t.Parallel()

		latin1, err := charmap.ISO8859_1.NewEncoder().String("<p>Économie de base</p>")
		if err != nil {
			t.Fatalf("failed to encode fixture: %v", err)
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
			_, _ = w.Write([]byte(latin1)) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		page, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), Request{URL: srv.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(page.Body), "Économie") {
			t.Errorf("body not decoded: %q", page.Body)
		}
	})

	t.Run("body over the limit is rejected", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(strings.Repeat("a", 101))) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		page, err := NewHTTPFetcher(srv.Client(), WithMaxBodySize(100)).Fetch(context.Background(), Request{URL: srv.URL})
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("expected ErrBodyTooLarge, got %v", err)
		}
		if page != nil {
			t.Error("expected no page")
		}
		if IsRetryable(err) {
			t.Error("an oversized body should not be retried")
		}
	})

	t.Run("body at the limit is accepted", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(strings.Repeat("a", 100))) //nolint:errcheck
		}))
		t.Cleanup(srv.Close)

		page, err := NewHTTPFetcher(srv.Client(), WithMaxBodySize(100)).Fetch(context.Background(), Request{URL: srv.URL})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Body) != 100 {
			t.Errorf("expected 100 bytes, got %d", len(page.Body))
		}
	})

	t.Run("final url follows redirects", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new/", http.StatusFound)
		})
		mux.HandleFunc("/new/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html></html>")) //nolint:errcheck
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		page, err := NewHTTPFetcher(srv.Client()).Fetch(context.Background(), Request{URL: srv.URL + "/old"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.URL.Path != "/new/" {
			t.Errorf("expected final path /new/, got %q", page.URL.Path)
		}
		if page.Request.URL != srv.URL+"/old" {
			t.Errorf("original request not kept: %q", page.Request.URL)
		}
	})
}
