package greet

import (
	"context"
	"testing"
	"time"

	"github.com/agentuity/go-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietbay/greeter/cache"
)

func newTestService(t *testing.T) (*Service, cache.Store) {
	t.Helper()
	store := cache.NewLocal(context.Background(),
		cache.WithNamespaces(cache.Namespace{Name: Namespace, TTL: 10 * time.Second}),
	)
	t.Cleanup(func() { store.Close() })
	return New(store, logger.NewTestLogger()), store
}

func TestHelloWorldFallbacks(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		greeting, err := svc.Hello(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "Hello, World!", greeting, "name %q", name)
	}
}

func TestHelloNormalizesName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	greeting, err := svc.Hello(ctx, "John")
	require.NoError(t, err)
	assert.Equal(t, "Hello, John!", greeting)

	greeting, err = svc.Hello(ctx, "  John   Doe  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello, John Doe!", greeting)

	greeting, err = svc.Hello(ctx, "John\t\nDoe")
	require.NoError(t, err)
	assert.Equal(t, "Hello, John Doe!", greeting)
}

func TestHelloCachesGreeting(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	first, err := svc.Hello(ctx, "Alice")
	require.NoError(t, err)
	second, err := svc.Hello(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// One miss populated the cache, the second call hit it.
	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Puts)
}

func TestHelloWhitespaceVariantsShareEntry(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.Hello(ctx, "John Doe")
	require.NoError(t, err)
	_, err = svc.Hello(ctx, "  John   Doe ")
	require.NoError(t, err)

	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.Puts)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestHelloNamespaceTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewLocal(ctx,
		cache.WithClock(func() time.Time { return now }),
		cache.WithNamespaces(cache.Namespace{Name: Namespace, TTL: 10 * time.Second}),
	)
	defer store.Close()
	svc := New(store, logger.NewTestLogger())

	_, err := svc.Hello(ctx, "Bob")
	require.NoError(t, err)

	now = now.Add(11 * time.Second)
	_, err = svc.Hello(ctx, "Bob")
	require.NoError(t, err)

	// The entry expired, so the second call recomputed and re-stored.
	stats := store.Stats()
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(2), stats.Puts)
}
