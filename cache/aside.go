package cache

import (
	"context"

	"github.com/agentuity/go-common/logger"
)

// Producer computes the value for a cache miss.
type Producer[T any] func(ctx context.Context) (T, error)

// Cached wraps an operation with cache-aside behavior in one namespace.
// It is composed explicitly at the call site:
//
//	hello := &cache.Cached[string]{Store: store, Namespace: "helloCache", Logger: log}
//	greeting, err := hello.Do(ctx, []any{name}, produce)
//
// A store failure never fails the call: a read error degrades to a miss and a
// write error is dropped, so a broken cache backend costs latency, not
// correctness. Producer errors propagate unmodified and nothing is cached.
//
// There is no single-flight suppression. Concurrent calls that miss on the
// same key may each invoke the producer and each write; the last write wins
// and its TTL applies. Layer a per-key mutex above Cached if the producer is
// too expensive to run twice.
type Cached[T any] struct {
	Store     Store
	Namespace string
	Logger    logger.Logger
}

// Do returns the cached value for the key derived from args, or invokes
// produce and stores its result.
func (c *Cached[T]) Do(ctx context.Context, args []any, produce Producer[T]) (T, error) {
	key := Key(args...)

	found, val, err := c.Store.Get(ctx, c.Namespace, key)
	if err != nil {
		c.Logger.Warn("cache read failed for %s/%s, treating as miss: %s", c.Namespace, key, err)
		found = false
	}
	if found {
		typed, err := As[T](val)
		if err == nil {
			return typed, nil
		}
		c.Logger.Warn("cache value for %s/%s unusable, treating as miss: %s", c.Namespace, key, err)
	}

	result, err := produce(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.Store.Put(ctx, c.Namespace, key, result, 0); err != nil {
		c.Logger.Warn("cache write failed for %s/%s: %s", c.Namespace, key, err)
	}
	return result, nil
}
