package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Default politeness settings.
const (
	DefaultConcurrency        = 16
	DefaultPerHostConcurrency = 8
	DefaultHostDelay          = 1 * time.Second
)

// hostBudget is the politeness budget of a single host.
type hostBudget struct {
	// slots caps concurrent in-flight requests to the host.
	slots *semaphore.Weighted

	// pace spaces consecutive request starts by at least the host delay.
	pace *rate.Limiter
}

// Politeness enforces the global in-flight cap and the per-host budget.
// It is safe for concurrent use.
type Politeness struct {
	global *semaphore.Weighted

	perHost int64
	delay   time.Duration

	mu    sync.Mutex
	hosts map[string]*hostBudget
}

// NewPoliteness creates a Politeness with the given caps.
// Non-positive caps fall back to the defaults; a zero delay disables pacing.
func NewPoliteness(concurrency, perHost int, delay time.Duration) *Politeness {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if perHost <= 0 {
		perHost = DefaultPerHostConcurrency
	}
	if perHost > concurrency {
		perHost = concurrency
	}
	if delay < 0 {
		delay = 0
	}

	return &Politeness{
		global:  semaphore.NewWeighted(int64(concurrency)),
		perHost: int64(perHost),
		delay:   delay,
		hosts:   make(map[string]*hostBudget),
	}
}

// budget returns the budget for host, creating it on first use.
func (p *Politeness) budget(host string) *hostBudget {
	host = strings.ToLower(host)

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.hosts[host]
	if !ok {
		limit := rate.Inf
		if p.delay > 0 {
			limit = rate.Every(p.delay)
		}
		b = &hostBudget{
			slots: semaphore.NewWeighted(p.perHost),
			pace:  rate.NewLimiter(limit, 1),
		}
		p.hosts[host] = b
	}
	return b
}

// Acquire blocks until a request to host may start. The host slot is
// taken first, then a global slot, and only then is the pacing delay
// waited out, so the spacing holds between actual request starts.
// The returned release must be called once the request finishes.
func (p *Politeness) Acquire(ctx context.Context, host string) (func(), error) {
	b := p.budget(host)

	if err := b.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if err := p.global.Acquire(ctx, 1); err != nil {
		b.slots.Release(1)
		return nil, err
	}

	if err := b.pace.Wait(ctx); err != nil {
		p.global.Release(1)
		b.slots.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.global.Release(1)
			b.slots.Release(1)
		})
	}, nil
}
