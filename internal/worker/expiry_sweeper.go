// Package worker runs the background jobs of the reservation service.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-reservation/internal/metrics"
)

// Runner expires unpaid reservations and reports how many it canceled.
type Runner interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ExpirySweeper periodically cancels reservations whose deposit window
// has passed.  Runs are guarded by a Locker so that several replicas do
// not sweep at once; a nil Locker runs unguarded.
type ExpirySweeper struct {
	runner   Runner
	locker   Locker
	interval time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewExpirySweeper(runner Runner, locker Locker, interval time.Duration, log zerolog.Logger, m *metrics.Metrics) *ExpirySweeper {
	return &ExpirySweeper{
		runner:   runner,
		locker:   locker,
		interval: interval,
		log:      log.With().Str("component", "expiry-sweeper").Logger(),
		metrics:  m,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *ExpirySweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("expiry sweep failed")
	}
}

// RunOnce performs a single guarded sweep.  It returns zero without error
// when another process holds the lock.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx)
		if err != nil {
			s.metrics.ObserveSweep(metrics.SweepError, 0, time.Since(start))
			return 0, err
		}
		if !ok {
			s.metrics.ObserveSweep(metrics.SweepSkipped, 0, 0)
			s.log.Debug().Msg("sweep skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := s.locker.Unlock(uctx); err != nil {
				s.log.Warn().Err(err).Msg("sweep lock release failed")
			}
		}()
	}

	n, err := s.runner.ExpireStale(ctx)
	if err != nil {
		s.metrics.ObserveSweep(metrics.SweepError, n, time.Since(start))
		return n, err
	}
	s.metrics.ObserveSweep(metrics.SweepOK, n, time.Since(start))
	if n > 0 {
		s.log.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expired unpaid reservations")
	}
	return n, nil
}
