package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces upstream calls with one token bucket per tenant, shared by
// every gateway caller for that tenant. It replaces fixed per-call sleeps so
// pacing is configured independently of orchestration logic.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewLimiter allows one call per interval with the given burst headroom.
func NewLimiter(interval time.Duration, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Every(interval),
		burst:   burst,
	}
}

// Wait blocks until the tenant's bucket grants a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, tenant string) error {
	return l.bucket(tenant).Wait(ctx)
}

func (l *Limiter) bucket(tenant string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenant]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[tenant] = b
	}
	return b
}
