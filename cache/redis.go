package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// redisStore is the distributed Store. Values are msgpack-serialized and
// expiry uses native Redis TTL, so entries are shared by every process
// pointed at the same instance.
type redisStore struct {
	client *redis.Client
	cfg    config
	stats  counters
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis. The caller owns the redis.Client
// lifecycle — Close is a no-op on the client.
func NewRedis(client *redis.Client, opts ...Option) Store {
	return &redisStore{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

// redisKey joins namespace and key, under an optional store-wide prefix.
func (s *redisStore) redisKey(namespace, key string) string {
	k := namespace + ":" + key
	if s.cfg.prefix == "" {
		return k
	}
	return s.cfg.prefix + ":" + k
}

func (s *redisStore) Get(ctx context.Context, namespace, key string) (bool, any, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, s.redisKey(namespace, key)).Bytes()
	if err == redis.Nil {
		s.stats.misses.Add(1)
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	s.stats.hits.Add(1)
	return true, data, nil
}

func (s *redisStore) Put(ctx context.Context, namespace, key string, val any, ttlOverride time.Duration) error {
	if isNil(val) && !s.cfg.cacheNil(namespace) {
		return nil
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return err
	}
	ttl := s.cfg.ttlFor(namespace, ttlOverride)
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Set(qctx, s.redisKey(namespace, key), data, ttl).Err(); err != nil {
		return err
	}
	s.stats.puts.Add(1)
	return nil
}

func (s *redisStore) Evict(ctx context.Context, namespace, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	removed, err := s.client.Del(qctx, s.redisKey(namespace, key)).Result()
	if err != nil {
		return err
	}
	s.stats.evictions.Add(uint64(removed))
	return nil
}

func (s *redisStore) ClearNamespace(ctx context.Context, namespace string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	match := s.redisKey(namespace, "*")
	iter := s.client.Scan(qctx, 0, match, 100).Iterator()
	for iter.Next(qctx) {
		removed, err := s.client.Del(qctx, iter.Val()).Result()
		if err != nil {
			return err
		}
		s.stats.evictions.Add(uint64(removed))
	}
	return iter.Err()
}

func (s *redisStore) Stats() Stats {
	return s.stats.snapshot()
}

// Close is a no-op — the caller owns the redis.Client lifecycle.
func (s *redisStore) Close() error {
	return nil
}
