// Package fixtures generates round-robin schedules for competitions and
// records match scores against them.
package fixtures

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/lock"
	"github.com/derekprior/fixtures/internal/metrics"
	"github.com/derekprior/fixtures/internal/retry"
	"github.com/derekprior/fixtures/internal/schedule"
)

// MatchCapacity is the seat count of a match's calendar entry: two teams.
const MatchCapacity = 2

// Service runs schedule generation and score recording against a Store.
// It is safe for concurrent use.
type Service struct {
	store     league.Store
	locker    lock.Locker
	metrics   *metrics.Metrics
	slots     schedule.SlotTable
	txTimeout time.Duration
	retryOpts []retry.Option
	logger    zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSlots sets the time slot table used for every generation.
func WithSlots(t schedule.SlotTable) Option {
	return func(s *Service) {
		if len(t) > 0 {
			s.slots = t
		}
	}
}

// WithTxTimeout bounds each persistence attempt.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithRetry tunes the policy used for transient store failures.
func WithRetry(opts ...retry.Option) Option {
	return func(s *Service) { s.retryOpts = append(s.retryOpts, opts...) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store league.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		locker:    lock.NewLocal(),
		slots:     schedule.DefaultSlots(),
		txTimeout: 10 * time.Second,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// retryPolicy builds a fresh policy per call so OnRetry can carry
// call-scoped fields.
func (s *Service) retryPolicy(logger zerolog.Logger) *retry.Policy {
	opts := append([]retry.Option{
		retry.WithRetryIf(league.IsTransient),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.metrics.ObserveRetry()
			logger.Warn().Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying schedule persistence")
		}),
	}, s.retryOpts...)
	return retry.New(opts...)
}

// outcome maps an error onto a metrics outcome label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, league.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, league.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, league.ErrStateConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, league.ErrTransientStore):
		return metrics.OutcomeTransient
	default:
		return metrics.OutcomeError
	}
}
