package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// sqliteStore is a persistent single-node Store. Values are msgpack BLOBs
// keyed by (namespace, key); file-backed databases survive restarts.
type sqliteStore struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	stats     counters
}

var _ Store = (*sqliteStore)(nil)

// NewSQLite returns a Store backed by SQLite. If dbPath is empty or
// ":memory:", an in-memory database is used.
func NewSQLite(ctx context.Context, dbPath string, opts ...Option) (Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	cfg := applyOptions(opts)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// Each connection gets its own :memory: database; pin the pool.
		db.SetMaxOpenConns(1)
	}

	// WAL mode for concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	)`); err != nil {
		db.Close()
		return nil, err
	}

	// Index on expires_at for efficient cleanup.
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`); err != nil {
		db.Close()
		return nil, err
	}

	childCtx, cancel := context.WithCancel(ctx)
	s := &sqliteStore{
		db:     db,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s, nil
}

func (s *sqliteStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *sqliteStore) Get(ctx context.Context, namespace, key string) (bool, any, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM cache WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		s.stats.misses.Add(1)
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if expiresAt < s.cfg.now().UnixNano() {
		// Lazily delete the expired entry.
		_, _ = s.db.ExecContext(qctx, `DELETE FROM cache WHERE namespace = ? AND key = ?`, namespace, key)
		s.stats.misses.Add(1)
		return false, nil, nil
	}
	s.stats.hits.Add(1)
	return true, data, nil
}

func (s *sqliteStore) Put(ctx context.Context, namespace, key string, val any, ttlOverride time.Duration) error {
	if isNil(val) && !s.cfg.cacheNil(namespace) {
		return nil
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return err
	}
	expiresAt := s.cfg.now().Add(s.cfg.ttlFor(namespace, ttlOverride)).UnixNano()
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err = s.db.ExecContext(qctx,
		`INSERT INTO cache (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		namespace, key, data, expiresAt,
	)
	if err != nil {
		return err
	}
	s.stats.puts.Add(1)
	return nil
}

func (s *sqliteStore) Evict(ctx context.Context, namespace, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(qctx, `DELETE FROM cache WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil {
		s.stats.evictions.Add(uint64(rows))
	}
	return nil
}

func (s *sqliteStore) ClearNamespace(ctx context.Context, namespace string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(qctx, `DELETE FROM cache WHERE namespace = ?`, namespace)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil {
		s.stats.evictions.Add(uint64(rows))
	}
	return nil
}

func (s *sqliteStore) Stats() Stats {
	return s.stats.snapshot()
}

func (s *sqliteStore) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *sqliteStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.db.Exec(`DELETE FROM cache WHERE expires_at < ?`, s.cfg.now().UnixNano())
		}
	}
}
