package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Cache is a keyed TTL store for expensive upstream reads. Entries are scoped
// to a tenant so one tenant's refresh never serves another tenant's data.
// Expiry is lazy: a read of an expired entry is a miss and recomputes.
type Cache struct {
	mu      sync.RWMutex
	entries map[entryKey]*entry
	sfg     singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

type entryKey struct {
	key    string
	tenant string
}

type entry struct {
	payload   interface{}
	expiresAt time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[entryKey]*entry),
		now:     time.Now,
	}
}

// GetOrCompute returns the live cached payload for (key, tenant), or invokes
// compute, stores its result for ttl, and returns it. Concurrent callers for
// the same key share a single compute via singleflight. A compute failure
// propagates to the caller and leaves the cache unpopulated.
func (c *Cache) GetOrCompute(key, tenant string, ttl time.Duration, compute func() (interface{}, error)) (interface{}, error) {
	k := entryKey{key: key, tenant: tenant}

	if v, ok := c.lookup(k); ok {
		return v, nil
	}

	v, err, _ := c.sfg.Do(tenant+"\x00"+key, func() (interface{}, error) {
		// Double-check after the singleflight barrier.
		if v, ok := c.lookup(k); ok {
			return v, nil
		}

		v, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[k] = &entry{
			payload:   v,
			expiresAt: c.now().Add(ttl),
		}
		c.mu.Unlock()

		return v, nil
	})
	return v, err
}

// Invalidate removes the entry for (key, tenant) outright.
func (c *Cache) Invalidate(key, tenant string) {
	c.mu.Lock()
	delete(c.entries, entryKey{key: key, tenant: tenant})
	c.mu.Unlock()
}

// InvalidateTenant removes every entry belonging to a tenant. Called when the
// tenant changes its upstream credentials, since keys are partly derived from
// credential identity and stale entries would otherwise linger until expiry.
func (c *Cache) InvalidateTenant(tenant string) {
	c.mu.Lock()
	for k := range c.entries {
		if k.tenant == tenant {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// InvalidatePrefix removes every entry for the tenant whose key starts with
// prefix, e.g. all cached inventory pages after a nameserver update.
func (c *Cache) InvalidatePrefix(prefix, tenant string) {
	c.mu.Lock()
	for k := range c.entries {
		if k.tenant == tenant && strings.HasPrefix(k.key, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// StartSweeper runs a background sweep that drops expired entries so a
// long-lived process does not accumulate dead keys. Lazy expiry alone is
// correct; the sweep only bounds memory.
func (c *Cache) StartSweeper(interval time.Duration, stopCh <-chan struct{}) {
	logrus.Debugf("starting cache sweeper, interval: %v", interval)
	wait.JitterUntil(c.sweep, interval, .002, true, stopCh)
}

func (c *Cache) lookup(k entryKey) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[k]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
