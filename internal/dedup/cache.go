// Package dedup holds the process-local idempotency state that keeps the
// service from reprocessing pipelines and from opening duplicate fix MRs.
package dedup

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultPipelineCooldown is how long a processed pipeline is skipped.
	DefaultPipelineCooldown = 10 * time.Minute
	// DefaultFixCooldown is how long a recorded fix MR is reused.
	DefaultFixCooldown = time.Hour
)

// Clock abstracts wall-clock time so windows can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type fixEntry struct {
	at  time.Time
	ref string
}

// Cache tracks recently processed pipelines and recently created fixes.
// Windows are evaluated at lookup time; expired entries are ignored until
// Sweep removes them. All methods are safe for concurrent use.
type Cache struct {
	mu               sync.Mutex
	clock            Clock
	pipelineCooldown time.Duration
	fixCooldown      time.Duration

	pipelines map[string]time.Time
	fixes     map[string]fixEntry
	// pending holds fix keys with an MR attempt in flight.
	pending map[string]time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects a clock.
func WithClock(c Clock) Option {
	return func(cache *Cache) {
		if c != nil {
			cache.clock = c
		}
	}
}

// WithPipelineCooldown overrides DefaultPipelineCooldown.
func WithPipelineCooldown(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.pipelineCooldown = d
		}
	}
}

// WithFixCooldown overrides DefaultFixCooldown.
func WithFixCooldown(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fixCooldown = d
		}
	}
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		clock:            systemClock{},
		pipelineCooldown: DefaultPipelineCooldown,
		fixCooldown:      DefaultFixCooldown,
		pipelines:        make(map[string]time.Time),
		fixes:            make(map[string]fixEntry),
		pending:          make(map[string]time.Time),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PipelineKey builds the cache key for a pipeline.
func PipelineKey(projectID string, pipelineID int64) string {
	return fmt.Sprintf("%s:%d", projectID, pipelineID)
}

// SeenRecently reports whether key was marked within the pipeline cooldown.
func (c *Cache) SeenRecently(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seenLocked(key, c.clock.Now())
}

// MarkProcessed records key as processed now.
func (c *Cache) MarkProcessed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipelines[key] = c.clock.Now()
}

// TryMarkProcessed marks key and returns true, unless it was already seen
// within the cooldown, in which case it returns false and changes nothing.
func (c *Cache) TryMarkProcessed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if c.seenLocked(key, now) {
		return false
	}
	c.pipelines[key] = now
	return true
}

func (c *Cache) seenLocked(key string, now time.Time) bool {
	at, ok := c.pipelines[key]
	return ok && now.Sub(at) < c.pipelineCooldown
}

// ExistingFix returns the reference recorded for key within the fix cooldown.
func (c *Cache) ExistingFix(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fixLocked(key, c.clock.Now())
}

// RecordFix stores ref for key and clears any in-flight reservation.
func (c *Cache) RecordFix(key, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixes[key] = fixEntry{at: c.clock.Now(), ref: ref}
	delete(c.pending, key)
}

// RestoreFix seeds a fix recorded at an earlier time, typically from the
// history store on startup. Entries already outside the cooldown are ignored,
// as are keys holding a newer fix.
func (c *Cache) RestoreFix(key, ref string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock.Now().Sub(at) >= c.fixCooldown {
		return
	}
	if e, ok := c.fixes[key]; ok && e.at.After(at) {
		return
	}
	c.fixes[key] = fixEntry{at: at, ref: ref}
}

// FixCooldown returns the fix reuse window.
func (c *Cache) FixCooldown() time.Duration { return c.fixCooldown }

// TryReserveFix claims the right to open a fix MR for key. It returns
// ok=false with the existing reference when an unexpired fix exists, and
// ok=false with an empty reference when another attempt is in flight.
// A successful reservation must be followed by RecordFix or ReleaseFix.
func (c *Cache) TryReserveFix(key string) (existing string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if ref, found := c.fixLocked(key, now); found {
		return ref, false
	}
	if at, busy := c.pending[key]; busy && now.Sub(at) < c.fixCooldown {
		return "", false
	}
	c.pending[key] = now
	return "", true
}

// ReleaseFix drops a reservation without recording a fix, so the next
// failure of the same kind may try again.
func (c *Cache) ReleaseFix(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, key)
}

func (c *Cache) fixLocked(key string, now time.Time) (string, bool) {
	e, ok := c.fixes[key]
	if !ok || now.Sub(e.at) >= c.fixCooldown {
		return "", false
	}
	return e.ref, true
}

// Sweep deletes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for k, at := range c.pipelines {
		if now.Sub(at) >= c.pipelineCooldown {
			delete(c.pipelines, k)
			removed++
		}
	}
	for k, e := range c.fixes {
		if now.Sub(e.at) >= c.fixCooldown {
			delete(c.fixes, k)
			removed++
		}
	}
	for k, at := range c.pending {
		if now.Sub(at) >= c.fixCooldown {
			delete(c.pending, k)
			removed++
		}
	}
	return removed
}

// Stats reports current entry counts, including expired ones not yet swept.
type Stats struct {
	Pipelines int `json:"pipelines"`
	Fixes     int `json:"fixes"`
	Pending   int `json:"pending"`
}

// Stats returns the current entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Pipelines: len(c.pipelines), Fixes: len(c.fixes), Pending: len(c.pending)}
}
