// Package greet produces greetings, memoized through the cache-aside layer.
package greet

import (
	"context"

	"github.com/agentuity/go-common/logger"

	"github.com/quietbay/greeter/cache"
)

// Namespace is the cache partition for greetings. Its TTL (10 seconds in the
// default configuration) is deliberately shorter than the store default.
const Namespace = "helloCache"

// Service computes greetings. Results are cached under a key derived from
// the normalized name, so "John  Doe" and " John Doe " share an entry.
type Service struct {
	cached *cache.Cached[string]
	log    logger.Logger
}

// New returns a greeting service backed by the given cache store.
func New(store cache.Store, log logger.Logger) *Service {
	log = log.WithPrefix("[greet]")
	return &Service{
		cached: &cache.Cached[string]{Store: store, Namespace: Namespace, Logger: log},
		log:    log,
	}
}

// Hello greets name, or the world when name is empty or blank.
func (s *Service) Hello(ctx context.Context, name string) (string, error) {
	return s.cached.Do(ctx, []any{name}, func(_ context.Context) (string, error) {
		// Only reached on a cache miss.
		s.log.Info("generating greeting for name: %q", name)
		normalized := cache.NormalizeSpace(name)
		if normalized == "" {
			return "Hello, World!", nil
		}
		return "Hello, " + normalized + "!", nil
	})
}
