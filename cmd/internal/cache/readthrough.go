package cache

import "context"

// Loader fetches the value for key on a miss. found=false with a nil error is a confirmed miss
// and is cached; a non-nil error is returned to the caller and nothing is cached.
type Loader[K comparable, V any] func(key K) (value V, found bool, err error)

// ContextLoader is a Loader that may block on I/O and honors ctx.
type ContextLoader[K comparable, V any] func(ctx context.Context, key K) (value V, found bool, err error)

// Sync is a read-through cache whose loader runs to completion inside Get.
//
// Concurrent misses for one key may each call the loader; the last write wins.
type Sync[K comparable, V any] struct {
	*Expiring[K, V]
	load Loader[K, V]
}

// NewSync constructs a Sync cache around load.
func NewSync[K comparable, V any](load Loader[K, V], opts ...Option) *Sync[K, V] {
	return &Sync[K, V]{Expiring: NewExpiring[K, V](opts...), load: load}
}

// Get returns the cached result for key, loading it at most once on a miss.
func (c *Sync[K, V]) Get(key K) (V, bool, error) {
	if v, found, ok := c.Lookup(key); ok {
		c.metrics.Hit()
		return v, found, nil
	}
	c.metrics.Miss()

	var zero V
	if c.load == nil {
		return zero, false, ErrNoLoader
	}
	v, found, err := c.load(key)
	if err != nil {
		return zero, false, err
	}
	c.store(key, v, found)
	return v, found, nil
}

// Result is the outcome of an asynchronous Get.
type Result[V any] struct {
	Value V
	Found bool
	Err   error
}

// Async is a read-through cache whose loader takes a context and may suspend on I/O.
// Its bookkeeping is identical to Sync.
type Async[K comparable, V any] struct {
	*Expiring[K, V]
	load ContextLoader[K, V]
}

// NewAsync constructs an Async cache around load.
func NewAsync[K comparable, V any](load ContextLoader[K, V], opts ...Option) *Async[K, V] {
	return &Async[K, V]{Expiring: NewExpiring[K, V](opts...), load: load}
}

// Get returns the cached result for key, loading it at most once on a miss.
// No lock is held while the loader runs.
func (c *Async[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if v, found, ok := c.Lookup(key); ok {
		c.metrics.Hit()
		return v, found, nil
	}
	c.metrics.Miss()

	if c.load == nil {
		return zero, false, ErrNoLoader
	}
	v, found, err := c.load(ctx, key)
	if err != nil {
		return zero, false, err
	}
	c.store(key, v, found)
	return v, found, nil
}

// GetAsync runs Get on its own goroutine and delivers exactly one Result.
func (c *Async[K, V]) GetAsync(ctx context.Context, key K) <-chan Result[V] {
	out := make(chan Result[V], 1)
	go func() {
		v, found, err := c.Get(ctx, key)
		out <- Result[V]{Value: v, Found: found, Err: err}
	}()
	return out
}
