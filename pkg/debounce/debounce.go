// Package debounce provides the admission cache that coalesces repeated
// filesystem notifications for the same path.
//
// Operating systems commonly report several events for a single file
// arrival (create, then one or more writes), and downloads re-trigger
// as they grow. The cache admits a path at most once per window; it is
// a heuristic against duplicate notifications, not a correctness
// guarantee.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the staleness window used when none is configured.
const DefaultWindow = 5 * time.Second

// Cache tracks when each path was last admitted.
type Cache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

// New creates an admission cache with the given window.
// A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}

	return &Cache{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// Admit reports whether the path should be admitted at time now, and
// records the admission when it is.
//
// A path is admitted if it has never been seen, or was last admitted
// more than the window ago.
func (c *Cache) Admit(path string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.seen[path]; ok && now.Sub(last) <= c.window {
		return false
	}

	c.seen[path] = now
	return true
}

// Prune removes entries older than the window so the cache does not
// grow unbounded. Called periodically by maintenance.
func (c *Cache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path, last := range c.seen {
		if now.Sub(last) > c.window {
			delete(c.seen, path)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked paths.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.seen)
}
