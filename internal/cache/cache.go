// Package cache provides a TTL cache with single-flight execution in front of
// expensive, deterministic producers such as recognition runs.
package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the lifetime of a stored value when none is given.
const DefaultTTL = 10 * time.Minute

// Entry is a stored value with its absolute expiry.
type Entry[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry must no longer be returned at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the backing key/value storage. Implementations do not interpret
// expiry; Cache does.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, e Entry[V]) error
	Delete(ctx context.Context, key string) error
}

// Producer computes the value for a key.
type Producer[V any] func(ctx context.Context) (V, error)

type options struct {
	name string
	ttl  time.Duration
	now  func() time.Time
}

// Option configures a Cache.
type Option func(*options)

// WithName labels the cache in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithTTL sets the default lifetime used when Store or Execute get ttl <= 0.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Cache is a TTL cache with per-key single-flight execution.
//
// Store errors never fail a request: a failed read is a miss and a failed
// write is logged and dropped.
type Cache[V any] struct {
	store Store[V]
	group singleflight.Group
	opts  options
}

// New creates a cache over store.
func New[V any](store Store[V], opts ...Option) *Cache[V] {
	o := options{name: "default", ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{store: store, opts: o}
}

// Lookup returns the live value for key. An expired entry is evicted and
// reported as absent.
func (c *Cache[V]) Lookup(ctx context.Context, key string) (V, bool) {
	v, ok := c.lookup(ctx, key)
	if ok {
		cacheLookups.WithLabelValues(c.opts.name, "hit").Inc()
	} else {
		cacheLookups.WithLabelValues(c.opts.name, "miss").Inc()
	}
	return v, ok
}

func (c *Cache[V]) lookup(ctx context.Context, key string) (V, bool) {
	var zero V
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		cacheStoreErrors.WithLabelValues(c.opts.name, "get").Inc()
		slog.Warn("Cache read failed", "cache", c.opts.name, "key", key, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	if e.Expired(c.opts.now()) {
		cacheEvictions.WithLabelValues(c.opts.name).Inc()
		if err := c.store.Delete(ctx, key); err != nil {
			cacheStoreErrors.WithLabelValues(c.opts.name, "delete").Inc()
			slog.Warn("Cache eviction failed", "cache", c.opts.name, "key", key, "error", err)
		}
		return zero, false
	}
	return e.Value, true
}

// Store writes value under key for ttl (the cache default when ttl <= 0).
func (c *Cache[V]) Store(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.ttl
	}
	e := Entry[V]{Value: value, ExpiresAt: c.opts.now().Add(ttl)}
	if err := c.store.Set(ctx, key, e); err != nil {
		cacheStoreErrors.WithLabelValues(c.opts.name, "set").Inc()
		slog.Warn("Cache write failed", "cache", c.opts.name, "key", key, "error", err)
	}
}

// Execute returns the cached value for key, or runs produce to compute it.
//
// At most one produce runs per key at a time. Callers that arrive while it is
// pending share its outcome, success or failure. Only successes are stored;
// after a failure the key is free again and the next call produces anew.
// produce receives the context of the caller that started it. A caller whose
// own ctx ends first returns ctx.Err() at once; the pending produce keeps
// running for the others and is still stored.
func (c *Cache[V]) Execute(ctx context.Context, key string, ttl time.Duration, produce Producer[V]) (V, error) {
	var zero V
	if v, ok := c.Lookup(ctx, key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A previous flight may have stored the value after our Lookup.
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		v, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		c.Store(context.WithoutCancel(ctx), key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			cacheSharedResults.WithLabelValues(c.opts.name).Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Forget removes key from the cache, so the next Execute recomputes it.
func (c *Cache[V]) Forget(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
