// Package cache provides TTL-bounded key/value caches with read-through loading.
//
// Expiry is lazy: an entry older than the TTL is treated as missing and evicted when it is next read.
// Sweep exists only to bound memory for keys that are never read again.
package cache

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL is used when no TTL option is supplied.
const DefaultTTL = 300 * time.Second

// ErrNoLoader is returned by Get when the cache was built without a loader.
var ErrNoLoader = errors.New("cache: no loader")

// Metrics receives cache lifecycle events.
type Metrics interface {
	Hit()
	Miss()
	Expire()
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) Hit()    {}
func (NoopMetrics) Miss()   {}
func (NoopMetrics) Expire() {}

// Option configures a cache.
type Option func(*options)

type options struct {
	ttl     time.Duration
	now     func() time.Time
	metrics Metrics
}

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics reports hits, misses and expirations to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

type entry[V any] struct {
	value    V
	found    bool
	storedAt time.Time
}

// Expiring is a mutex-guarded map whose entries expire ttl after they were stored.
//
// An entry may hold a confirmed-absent result (found=false); that is distinct from having no entry.
type Expiring[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]

	ttl     time.Duration
	now     func() time.Time
	metrics Metrics
}

// NewExpiring constructs an empty Expiring cache.
func NewExpiring[K comparable, V any](opts ...Option) *Expiring[K, V] {
	o := options{ttl: DefaultTTL, now: time.Now, metrics: NoopMetrics{}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	return &Expiring[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     o.ttl,
		now:     o.now,
		metrics: o.metrics,
	}
}

// TTL returns the configured entry lifetime.
func (c *Expiring[K, V]) TTL() time.Duration { return c.ttl }

func (c *Expiring[K, V]) valid(e entry[V], now time.Time) bool {
	return now.Sub(e.storedAt) < c.ttl
}

// Lookup returns the cached result for key. cached reports whether a valid entry exists;
// found reports whether that entry holds a value or a confirmed miss.
// An expired entry is evicted and reported as not cached.
func (c *Expiring[K, V]) Lookup(key K) (value V, found bool, cached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return value, false, false
	}
	if !c.valid(e, c.now()) {
		delete(c.entries, key)
		c.metrics.Expire()
		return value, false, false
	}
	return e.value, e.found, true
}

// Set stores value under key and resets its timestamp.
func (c *Expiring[K, V]) Set(key K, value V) {
	c.store(key, value, true)
}

// SetAbsent records a confirmed miss for key.
func (c *Expiring[K, V]) SetAbsent(key K) {
	var zero V
	c.store(key, zero, false)
}

func (c *Expiring[K, V]) store(key K, value V, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, found: found, storedAt: c.now()}
}

// Remove deletes key and reports whether an entry (valid or not) existed.
func (c *Expiring[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *Expiring[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Contains reports whether key has a valid entry. It never evicts.
func (c *Expiring[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && c.valid(e, c.now())
}

// Len returns the number of stored entries, expired ones included.
func (c *Expiring[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *Expiring[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !c.valid(e, now) {
			delete(c.entries, k)
			n++
		}
	}
	for range n {
		c.metrics.Expire()
	}
	return n
}
