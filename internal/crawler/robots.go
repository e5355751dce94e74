package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultRobotsCacheTTL is how long a host's robots.txt is trusted.
	defaultRobotsCacheTTL = 24 * time.Hour

	// maxRobotsBodyBytes limits the robots.txt body read.
	maxRobotsBodyBytes = 512 * 1024
)

// RobotsChecker decides whether a URL may be fetched according to the
// host's robots.txt. Rules are fetched once per host and cached;
// concurrent misses for the same host share one fetch.
// A missing, unreadable or non-2xx robots.txt allows everything.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration

	// politeness paces robots.txt fetches like page fetches. Nil means unpaced.
	politeness *Politeness

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// NewRobotsChecker creates a RobotsChecker. userAgent is the agent name
// matched against robots.txt groups. A zero ttl uses 24 hours.
func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = defaultRobotsCacheTTL
	}

	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		cache:     make(map[string]*robotsEntry),
	}
}

// Allowed reports whether rawURL may be fetched.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(u.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry, err := r.rules(ctx, u.Scheme, host)
	if err != nil {
		return false, fmt.Errorf("robots: %w", err)
	}

	if entry.data == nil {
		return true, nil
	}

	return entry.data.TestAgent(u.RequestURI(), r.userAgent), nil
}

// rules returns the cached entry for host, fetching it on a miss.
// A shared fetch abandoned because another caller's context ended is
// retried with this caller's context.
func (r *RobotsChecker) rules(ctx context.Context, scheme, host string) (*robotsEntry, error) {
	for {
		if entry := r.cached(host); entry != nil {
			return entry, nil
		}

		v, err, _ := r.group.Do(host, func() (any, error) {
			return r.fetch(ctx, scheme, host)
		})
		if err == nil {
			return v.(*robotsEntry), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
}

func (r *RobotsChecker) cached(host string) *robotsEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[host]
	if !ok || time.Since(entry.fetchedAt) > r.ttl {
		return nil
	}
	return entry
}

// fetch downloads and caches robots.txt for host. Network and status
// failures are cached as allow-all entries. A fetch cut short by ctx is
// not cached and returns the context error.
func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) (*robotsEntry, error) {
	if scheme == "" {
		scheme = "https"
	}

	if r.politeness != nil {
		release, err := r.politeness.Acquire(ctx, host)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	entry := &robotsEntry{fetchedAt: time.Now()}

	body, status, err := r.get(ctx, scheme+"://"+host+"/robots.txt")
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil && status >= http.StatusOK && status < http.StatusMultipleChoices {
		if data, parseErr := robotstxt.FromBytes(body); parseErr == nil {
			entry.data = data
		}
	}

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry, nil
}

func (r *RobotsChecker) get(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
