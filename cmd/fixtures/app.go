package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/derekprior/fixtures/internal/fixtures"
	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/lock"
	"github.com/derekprior/fixtures/internal/metrics"
	"github.com/derekprior/fixtures/internal/retry"
	"github.com/derekprior/fixtures/internal/settings"
	"github.com/derekprior/fixtures/internal/store/postgres"
	"github.com/derekprior/fixtures/internal/store/sqlite"
)

const defaultSettingsFile = "fixtures.yaml"

// resolveSettingsPath returns the settings file to load, or "" to run on
// defaults and environment variables alone.
func resolveSettingsPath(flag string) string {
	if flag != "" {
		return flag
	}
	if _, err := os.Stat(defaultSettingsFile); err == nil {
		return defaultSettingsFile
	}
	return ""
}

func setupLogger(s *settings.Settings) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if s.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// app holds everything a command needs once settings are loaded.
type app struct {
	settings *settings.Settings
	store    league.Store
	metrics  *metrics.Metrics
	svc      *fixtures.Service

	closers []func() error
}

func openStore(ctx context.Context, s *settings.Settings) (league.Store, error) {
	if s.Database.Driver == settings.DriverPostgres {
		store, err := postgres.Open(ctx, s.Database.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.Open(s.Database.DSN)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newLocker returns a Redis lock when redis.addr is set and an in-process
// one otherwise.
func newLocker(ctx context.Context, s *settings.Settings) (lock.Locker, func() error, error) {
	if s.Redis.Addr == "" {
		return lock.NewLocal(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", s.Redis.Addr, err)
	}
	return lock.NewRedis(client, s.Redis.LockTTL), client.Close, nil
}

func newApp(ctx context.Context, s *settings.Settings) (*app, error) {
	store, err := openStore(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", s.Database.Driver, err)
	}
	a := &app{settings: s, store: store, metrics: metrics.New()}
	a.closers = append(a.closers, store.Close)

	locker, closeLocker, err := newLocker(ctx, s)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLocker)

	a.svc = fixtures.New(store,
		fixtures.WithLocker(locker),
		fixtures.WithMetrics(a.metrics),
		fixtures.WithSlots(s.Scheduling.TimeSlots),
		fixtures.WithTxTimeout(s.Scheduling.TxTimeout),
		fixtures.WithRetry(
			retry.WithMaxAttempts(s.Scheduling.MaxAttempts),
			retry.WithInitialDelay(s.Scheduling.RetryDelay),
		),
		fixtures.WithLogger(log.Logger),
	)

	log.Debug().
		Str("driver", s.Database.Driver).
		Bool("redis_lock", s.Redis.Addr != "").
		Msg("Application ready")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Exit codes, by error kind.
const (
	exitError       = 1
	exitValidation  = 2
	exitNotFound    = 3
	exitConflict    = 4
	exitUnavailable = 5
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, league.ErrValidation):
		return exitValidation
	case errors.Is(err, league.ErrNotFound):
		return exitNotFound
	case errors.Is(err, league.ErrStateConflict):
		return exitConflict
	case errors.Is(err, league.ErrTransientStore):
		return exitUnavailable
	default:
		return exitError
	}
}
