package cache

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	object    any
	expiresAt time.Time
}

// localStore is the in-process Store. Values are stored as-is with no
// serialization, so it is not shared across process instances and mutations
// to stored pointers are visible through the cache.
type localStore struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.Mutex
	entries   map[string]map[string]*localEntry
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	stats     counters
}

var _ Store = (*localStore)(nil)

// NewLocal returns an in-process Store. Expired entries are swept by a
// background goroutine at the configured expiry-check interval.
func NewLocal(parent context.Context, opts ...Option) Store {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	s := &localStore{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]map[string]*localEntry),
		cfg:     cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s
}

func (s *localStore) Get(_ context.Context, namespace, key string) (bool, any, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ns, ok := s.entries[namespace]
	if !ok {
		s.stats.misses.Add(1)
		return false, nil, nil
	}
	entry, ok := ns[key]
	if !ok {
		s.stats.misses.Add(1)
		return false, nil, nil
	}
	if entry.expiresAt.Before(s.cfg.now()) {
		delete(ns, key)
		s.stats.misses.Add(1)
		return false, nil, nil
	}
	s.stats.hits.Add(1)
	return true, entry.object, nil
}

func (s *localStore) Put(_ context.Context, namespace, key string, val any, ttlOverride time.Duration) error {
	if isNil(val) && !s.cfg.cacheNil(namespace) {
		return nil
	}
	ttl := s.cfg.ttlFor(namespace, ttlOverride)
	s.mutex.Lock()
	ns, ok := s.entries[namespace]
	if !ok {
		ns = make(map[string]*localEntry)
		s.entries[namespace] = ns
	}
	ns[key] = &localEntry{object: val, expiresAt: s.cfg.now().Add(ttl)}
	s.mutex.Unlock()
	s.stats.puts.Add(1)
	return nil
}

func (s *localStore) Evict(_ context.Context, namespace, key string) error {
	s.mutex.Lock()
	if ns, ok := s.entries[namespace]; ok {
		if _, ok := ns[key]; ok {
			delete(ns, key)
			s.stats.evictions.Add(1)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *localStore) ClearNamespace(_ context.Context, namespace string) error {
	s.mutex.Lock()
	if ns, ok := s.entries[namespace]; ok {
		s.stats.evictions.Add(uint64(len(ns)))
		delete(s.entries, namespace)
	}
	s.mutex.Unlock()
	return nil
}

func (s *localStore) Stats() Stats {
	return s.stats.snapshot()
}

func (s *localStore) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
	return nil
}

func (s *localStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *localStore) removeExpired() {
	now := s.cfg.now()
	s.mutex.Lock()
	for _, ns := range s.entries {
		for key, entry := range ns {
			if entry.expiresAt.Before(now) {
				delete(ns, key)
			}
		}
	}
	s.mutex.Unlock()
}
