package cache

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is a key/value cache partitioned into named namespaces. Each
// namespace carries its own TTL and nil-caching policy (see Namespace);
// lookups for unknown namespaces fall back to the store-wide defaults.
type Store interface {
	// Get returns the value stored under (namespace, key), or found=false on
	// a miss or after the entry's TTL has elapsed. Get never refreshes TTL.
	Get(ctx context.Context, namespace, key string) (found bool, val any, err error)

	// Put stores a value unconditionally (last writer wins). A ttlOverride
	// of zero applies the namespace TTL, falling back to the store default.
	// When the namespace disables nil caching and val is nil, Put writes
	// nothing and returns nil.
	Put(ctx context.Context, namespace, key string, val any, ttlOverride time.Duration) error

	// Evict removes a single entry. Removing an absent entry is not an error.
	Evict(ctx context.Context, namespace, key string) error

	// ClearNamespace removes every entry in the namespace.
	ClearNamespace(ctx context.Context, namespace string) error

	// Stats returns a snapshot of the store's counters.
	Stats() Stats

	// Close shuts down the store. Backends with a caller-owned client or
	// database leave that handle open.
	Close() error
}

// Namespace configures one cache partition. The configuration table is fixed
// at construction time and never changes while the process runs.
type Namespace struct {
	Name string
	// TTL applied to entries written without an explicit override.
	TTL time.Duration
	// CacheNil controls whether nil values are stored. When false, putting a
	// nil value is a silent no-op, so absent results are recomputed on every
	// call instead of pinning "nothing" in the cache.
	CacheNil bool
}

// Stats is a snapshot of a store's counters since construction.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Puts      uint64
	Evictions uint64
}

// counters is the shared atomic backing for Stats.
type counters struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	puts      atomic.Uint64
	evictions atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Puts:      c.puts.Load(),
		Evictions: c.evictions.Load(),
	}
}

// DefaultTTL is the store-wide TTL applied when neither the caller nor the
// namespace specifies one.
const DefaultTTL = 10 * time.Minute

// DefaultQueryTimeout bounds each operation on I/O-backed stores (Redis,
// SQLite) so a slow backend costs at most this much extra latency.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	defaultTTL   time.Duration
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
	namespaces   map[string]Namespace
	now          func() time.Time
}

// Option configures a Store implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultTTL:   DefaultTTL,
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
		namespaces:   make(map[string]Namespace),
		now:          time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the store-wide TTL used when a namespace has no TTL of
// its own and the caller passes no override. Defaults to DefaultTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
// Defaults to DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired-entry cleanup.
// Applies to the local and SQLite backends. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix sets a key prefix so multiple services can share one Redis
// instance. Defaults to empty.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithNamespaces registers per-namespace TTL and nil-caching overrides.
func WithNamespaces(namespaces ...Namespace) Option {
	return func(c *config) {
		for _, ns := range namespaces {
			c.namespaces[ns.Name] = ns
		}
	}
}

// WithClock overrides the time source. Tests use this to exercise TTL expiry
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// ttlFor resolves the TTL for a write: caller override, then namespace TTL,
// then the store default.
func (c *config) ttlFor(namespace string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if ns, ok := c.namespaces[namespace]; ok && ns.TTL > 0 {
		return ns.TTL
	}
	return c.defaultTTL
}

// cacheNil reports whether the namespace stores nil values. Unknown
// namespaces do not.
func (c *config) cacheNil(namespace string) bool {
	if ns, ok := c.namespaces[namespace]; ok {
		return ns.CacheNil
	}
	return false
}

// isNil reports whether val is nil, including typed nil pointers, maps and
// slices hiding inside a non-nil interface.
func isNil(val any) bool {
	if val == nil {
		return true
	}
	switch rv := reflect.ValueOf(val); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// As converts a value returned by Store.Get into T. The local backend stores
// objects as-is, so a direct type assertion works; serializing backends
// (Redis, SQLite) return []byte that is decoded with msgpack.
func As[T any](val any) (T, error) {
	if val == nil {
		var zero T
		return zero, nil
	}
	if typed, ok := val.(T); ok {
		return typed, nil
	}
	if data, ok := val.([]byte); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			var zero T
			return zero, fmt.Errorf("cache: failed to unmarshal value: %w", err)
		}
		return result, nil
	}
	var zero T
	return zero, fmt.Errorf("cache: cannot convert value of type %T to %T", val, zero)
}

// GetAs retrieves a typed value from the store.
func GetAs[T any](ctx context.Context, s Store, namespace, key string) (bool, T, error) {
	found, val, err := s.Get(ctx, namespace, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	typed, err := As[T](val)
	if err != nil {
		var zero T
		return false, zero, err
	}
	return true, typed, nil
}
