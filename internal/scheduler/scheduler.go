// Package scheduler runs the background maintenance jobs. It wraps gocron
// and owns two sweeps: purging consumed and expired OAuth states, and purging
// revoked-token blacklist entries whose token has expired on its own.
//
// Both sweeps are idempotent bulk deletes, so overlapping or missed runs are
// harmless. Jobs run in singleton mode: if a sweep is still running when the
// next tick fires, the tick is skipped.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/repositories"
)

const (
	// DefaultStateSweepInterval is how often stale OAuth states are purged.
	// States live minutes, so a short cadence keeps the table tiny.
	DefaultStateSweepInterval = 5 * time.Minute

	// revokedSweepInterval is how often expired blacklist entries are purged.
	// Refresh tokens live days, hourly is plenty.
	revokedSweepInterval = time.Hour

	// sweepTimeout bounds a single sweep's database work.
	sweepTimeout = 30 * time.Second
)

// Scheduler wraps gocron and coordinates the cleanup sweeps.
// The zero value is not usable; create instances with New.
type Scheduler struct {
	cron    gocron.Scheduler
	states  repositories.OAuthStateRepository
	revoked repositories.RevokedTokenRepository
	logger  *zap.Logger

	stateSweepInterval time.Duration
}

// New creates and configures a new Scheduler. stateSweepInterval <= 0 falls
// back to DefaultStateSweepInterval. Call Start to begin processing.
func New(
	states repositories.OAuthStateRepository,
	revoked repositories.RevokedTokenRepository,
	stateSweepInterval time.Duration,
	logger *zap.Logger,
) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	if stateSweepInterval <= 0 {
		stateSweepInterval = DefaultStateSweepInterval
	}

	return &Scheduler{
		cron:               s,
		states:             states,
		revoked:            revoked,
		logger:             logger.Named("scheduler"),
		stateSweepInterval: stateSweepInterval,
	}, nil
}

// Start registers the sweeps and starts the underlying gocron scheduler.
// It should be called once at server startup, after the database connection
// is established.
func (s *Scheduler) Start() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.stateSweepInterval),
		gocron.NewTask(s.sweepStates),
		gocron.WithName("oauth-state-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule state sweep: %w", err)
	}

	_, err = s.cron.NewJob(
		gocron.DurationJob(revokedSweepInterval),
		gocron.NewTask(s.sweepRevokedTokens),
		gocron.WithName("revoked-token-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule revoked token sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Duration("state_sweep_interval", s.stateSweepInterval),
		zap.Duration("revoked_sweep_interval", revokedSweepInterval),
	)
	return nil
}

// Stop gracefully shuts down the underlying gocron scheduler, waiting for any
// currently running sweep to complete before returning.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown error: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// sweepStates removes consumed and expired OAuth states. A failed sweep is
// logged and retried at the next tick; the rows it would have removed stay
// harmless in the meantime because consumption re-checks expiry.
func (s *Scheduler) sweepStates() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.states.DeleteStale(ctx)
	if err != nil {
		s.logger.Error("oauth state sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		metrics.StatesPurged.Add(float64(removed))
		s.logger.Debug("oauth state sweep completed", zap.Int64("removed", removed))
	}
}

// sweepRevokedTokens removes blacklist entries for tokens past their expiry.
func (s *Scheduler) sweepRevokedTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.revoked.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("revoked token sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		metrics.RevokedTokensPurged.Add(float64(removed))
		s.logger.Debug("revoked token sweep completed", zap.Int64("removed", removed))
	}
}
