package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentuity/go-common/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/quietbay/greeter/cache"
	"github.com/quietbay/greeter/config"
	"github.com/quietbay/greeter/greet"
	"github.com/quietbay/greeter/httpapi"
	"github.com/quietbay/greeter/user"
)

var (
	configPath   string
	listenAddr   string
	cacheBackend string
	redisAddr    string
	userDB       string
	cacheDB      string
)

var rootCmd = &cobra.Command{
	Use:   "greeterd",
	Short: "Greeting and user directory HTTP service",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address")
	rootCmd.Flags().StringVar(&cacheBackend, "cache-backend", "", "cache backend: local, redis or sqlite")
	rootCmd.Flags().StringVar(&redisAddr, "redis", "", "redis host:port")
	rootCmd.Flags().StringVar(&userDB, "user-db", "", "path to the user SQLite database")
	rootCmd.Flags().StringVar(&cacheDB, "cache-db", "", "path to the cache SQLite database")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log := logger.NewConsoleLogger(logger.GetLevelFromEnv())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Flags override file and environment.
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if cacheBackend != "" {
		cfg.Backend = cacheBackend
	}
	if redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if userDB != "" {
		cfg.UserDB = userDB
	}
	if cacheDB != "" {
		cfg.CacheDB = cacheDB
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	defer store.Close()

	userStore, err := user.NewSQLiteStore(cfg.UserDB)
	if err != nil {
		return err
	}
	defer userStore.Close()

	directory := user.NewDirectory(userStore, log)
	greeter := greet.New(store, log)
	api := httpapi.New(greeter, directory, log)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s (cache backend: %s)", cfg.Listen, cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown did not complete cleanly: %s", err)
	}

	stats := store.Stats()
	log.Debug("cache stats: hits=%d misses=%d puts=%d evictions=%d",
		stats.Hits, stats.Misses, stats.Puts, stats.Evictions)
	return nil
}

// buildStore constructs the configured cache backend. The returned cleanup
// closes any client the store itself does not own.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (cache.Store, func(), error) {
	opts := append(cfg.CacheOptions(), cache.WithQueryTimeout(cfg.RedisTimeout))
	switch cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  cfg.RedisTimeout,
			ReadTimeout:  cfg.RedisTimeout,
			WriteTimeout: cfg.RedisTimeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.RedisTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Caching degrades to misses; an unreachable redis is not fatal.
			log.Warn("redis at %s unreachable, caching will degrade: %s", cfg.RedisAddr, err)
		}
		return cache.NewRedis(client, opts...), func() { client.Close() }, nil
	case config.BackendSQLite:
		store, err := cache.NewSQLite(ctx, cfg.CacheDB, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case config.BackendLocal:
		return cache.NewLocal(ctx, opts...), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
