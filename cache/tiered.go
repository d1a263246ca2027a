package cache

import (
	"context"
	"time"
)

// tieredStore chains stores in order: Get returns the first hit (checked
// left to right), writes and invalidations fan out to every tier. A common
// topology is a local L1 in front of a Redis L2.
type tieredStore struct {
	tiers []Store
	stats counters
}

var _ Store = (*tieredStore)(nil)

// NewTiered returns a Store that chains the given stores together.
// Panics if no stores are provided.
func NewTiered(tiers ...Store) Store {
	if len(tiers) == 0 {
		panic("cache: NewTiered requires at least one store")
	}
	return &tieredStore{tiers: tiers}
}

func (s *tieredStore) Get(ctx context.Context, namespace, key string) (bool, any, error) {
	var firstErr error
	for _, tier := range s.tiers {
		found, val, err := tier.Get(ctx, namespace, key)
		if err != nil {
			// A broken tier is a miss for that tier; a later tier may
			// still hold the value.
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if found {
			s.stats.hits.Add(1)
			return true, val, nil
		}
	}
	if firstErr != nil {
		return false, nil, firstErr
	}
	s.stats.misses.Add(1)
	return false, nil, nil
}

func (s *tieredStore) Put(ctx context.Context, namespace, key string, val any, ttlOverride time.Duration) error {
	var firstErr error
	for _, tier := range s.tiers {
		if err := tier.Put(ctx, namespace, key, val, ttlOverride); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		s.stats.puts.Add(1)
	}
	return firstErr
}

func (s *tieredStore) Evict(ctx context.Context, namespace, key string) error {
	var firstErr error
	for _, tier := range s.tiers {
		if err := tier.Evict(ctx, namespace, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.stats.evictions.Add(1)
	return firstErr
}

func (s *tieredStore) ClearNamespace(ctx context.Context, namespace string) error {
	var firstErr error
	for _, tier := range s.tiers {
		if err := tier.ClearNamespace(ctx, namespace); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *tieredStore) Stats() Stats {
	return s.stats.snapshot()
}

func (s *tieredStore) Close() error {
	var firstErr error
	for _, tier := range s.tiers {
		if err := tier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
