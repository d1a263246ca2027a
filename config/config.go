// Package config resolves the service configuration from defaults, an
// optional YAML file, and environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/quietbay/greeter/cache"
)

// Cache backends selectable via configuration.
const (
	BackendLocal  = "local"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Namespace is one entry of the cache configuration table. The table is
// resolved once at startup and never changes while the process runs.
type Namespace struct {
	Name     string
	TTL      time.Duration
	CacheNil bool
}

// Config is the fully resolved service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string
	// Backend selects the cache store: local, redis or sqlite.
	Backend string
	// RedisAddr is the host:port of the shared cache backend.
	RedisAddr string
	// RedisTimeout bounds connect and per-command time on the cache client,
	// so a slow cache is never worse than no cache by more than this.
	RedisTimeout time.Duration
	// CacheDB is the SQLite path for the sqlite cache backend.
	CacheDB string
	// UserDB is the SQLite path for user storage.
	UserDB string
	// DefaultTTL applies to namespaces without a TTL of their own.
	DefaultTTL time.Duration
	// Namespaces holds the per-namespace TTL and nil-caching overrides.
	Namespaces []Namespace
}

// Default returns the built-in configuration: a 10 minute default TTL with a
// 10 second helloCache override and nil caching disabled everywhere.
func Default() *Config {
	return &Config{
		Listen:       ":8080",
		Backend:      BackendLocal,
		RedisAddr:    "localhost:6379",
		RedisTimeout: 2 * time.Second,
		CacheDB:      "cache.db",
		UserDB:       "greeter.db",
		DefaultTTL:   10 * time.Minute,
		Namespaces: []Namespace{
			{Name: "helloCache", TTL: 10 * time.Second, CacheNil: false},
		},
	}
}

// file is the YAML shape. Durations are strings ("10s", "10m") parsed with
// str2duration.
type file struct {
	Listen string `yaml:"listen"`
	Cache  struct {
		Backend    string `yaml:"backend"`
		DefaultTTL string `yaml:"default_ttl"`
		DB         string `yaml:"db"`
		Namespaces []struct {
			Name     string `yaml:"name"`
			TTL      string `yaml:"ttl"`
			CacheNil bool   `yaml:"cache_nil"`
		} `yaml:"namespaces"`
	} `yaml:"cache"`
	Redis struct {
		Addr    string `yaml:"addr"`
		Timeout string `yaml:"timeout"`
	} `yaml:"redis"`
	UserDB string `yaml:"user_db"`
}

// Load resolves the configuration. path may be empty (no file); a named file
// must exist and parse.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f file
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if f.Listen != "" {
		c.Listen = f.Listen
	}
	if f.Cache.Backend != "" {
		c.Backend = f.Cache.Backend
	}
	if f.Cache.DefaultTTL != "" {
		d, err := parseTTL("cache.default_ttl", f.Cache.DefaultTTL)
		if err != nil {
			return err
		}
		c.DefaultTTL = d
	}
	if f.Cache.DB != "" {
		c.CacheDB = f.Cache.DB
	}
	if len(f.Cache.Namespaces) > 0 {
		c.Namespaces = c.Namespaces[:0]
		for _, ns := range f.Cache.Namespaces {
			entry := Namespace{Name: ns.Name, CacheNil: ns.CacheNil}
			if ns.TTL != "" {
				d, err := parseTTL("cache.namespaces."+ns.Name+".ttl", ns.TTL)
				if err != nil {
					return err
				}
				entry.TTL = d
			}
			c.Namespaces = append(c.Namespaces, entry)
		}
	}
	if f.Redis.Addr != "" {
		c.RedisAddr = f.Redis.Addr
	}
	if f.Redis.Timeout != "" {
		d, err := parseTTL("redis.timeout", f.Redis.Timeout)
		if err != nil {
			return err
		}
		c.RedisTimeout = d
	}
	if f.UserDB != "" {
		c.UserDB = f.UserDB
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("GREETER_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("GREETER_CACHE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("GREETER_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("GREETER_CACHE_DB"); v != "" {
		c.CacheDB = v
	}
	if v := os.Getenv("GREETER_USER_DB"); v != "" {
		c.UserDB = v
	}
	if v := os.Getenv("GREETER_CACHE_DEFAULT_TTL"); v != "" {
		d, err := parseTTL("GREETER_CACHE_DEFAULT_TTL", v)
		if err != nil {
			return err
		}
		c.DefaultTTL = d
	}
	return nil
}

// CacheOptions translates the configuration table into store options.
func (c *Config) CacheOptions() []cache.Option {
	namespaces := make([]cache.Namespace, 0, len(c.Namespaces))
	for _, ns := range c.Namespaces {
		namespaces = append(namespaces, cache.Namespace{Name: ns.Name, TTL: ns.TTL, CacheNil: ns.CacheNil})
	}
	return []cache.Option{
		cache.WithDefaultTTL(c.DefaultTTL),
		cache.WithNamespaces(namespaces...),
	}
}

func parseTTL(field, raw string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q for %s: %w", raw, field, err)
	}
	return d, nil
}
