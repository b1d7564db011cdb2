// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/cityexplorer/internal/cache"
	"github.com/briangreenhill/cityexplorer/internal/config"
	"github.com/briangreenhill/cityexplorer/internal/http/routes"
	"github.com/briangreenhill/cityexplorer/internal/jobs"
	"github.com/briangreenhill/cityexplorer/internal/providers"
	"github.com/briangreenhill/cityexplorer/internal/store"
)

func main() {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	} else {
		logger.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn().Err(err).Msg("some routes will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	pool, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()
	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	// Providers
	registry, geocoder := providers.Setup(cfg.Upstream, logger)

	// Persistence: queued through the worker when Redis is configured,
	// otherwise in-process.
	var persister cache.Persister
	var background *cache.BackgroundPersister
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close() //nolint:errcheck
		persister = jobs.NewQueuePersister(client, logger)
		logger.Info().Str("redis", cfg.RedisAddr).Msg("record writes queued to worker")
	} else {
		background = cache.NewBackgroundPersister(st, logger)
		persister = background
	}

	opts := cache.Options{
		Store:     st,
		Bindings:  cache.Bindings(registry),
		Persister: persister,
		Logger:    logger,
	}
	if geocoder != nil {
		opts.Geocoder = geocoder
	}
	svc, err := cache.New(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("cache setup")
	}

	// Router / server
	s := routes.New(routes.ServerOptions{Cache: svc, Logger: logger})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Strs("kinds", kindNames(registry)).Msg("starting app")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if background != nil {
		background.Wait()
	}
}

func kindNames(reg *providers.Registry) []string {
	kinds := reg.List()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
