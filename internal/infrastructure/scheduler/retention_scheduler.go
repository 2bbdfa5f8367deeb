// Package scheduler runs the server's periodic housekeeping.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ArtifactSweeper deletes invoice documents older than a given age
type ArtifactSweeper interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// RetentionSchedulerConfig holds configuration for the artifact retention sweep
type RetentionSchedulerConfig struct {
	// RetentionDays is how long rendered invoices are kept. Zero disables the sweep.
	RetentionDays int

	// CleanupHour is the local hour (0-23) of the daily sweep
	CleanupHour int

	// RunOnStart sweeps once as soon as the scheduler starts
	RunOnStart bool

	// CleanupTimeout bounds a single sweep
	CleanupTimeout time.Duration
}

// DefaultRetentionSchedulerConfig returns default configuration
func DefaultRetentionSchedulerConfig() RetentionSchedulerConfig {
	return RetentionSchedulerConfig{
		CleanupHour:    3,
		RunOnStart:     true,
		CleanupTimeout: 15 * time.Minute,
	}
}

// RetentionScheduler removes rendered invoices past their retention period.
// Documents are rebuilt on demand, so a swept file costs one regeneration.
type RetentionScheduler struct {
	sweeper   ArtifactSweeper
	logger    *zap.Logger
	config    RetentionSchedulerConfig
	now       func() time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(sweeper ArtifactSweeper, logger *zap.Logger, config RetentionSchedulerConfig) (*RetentionScheduler, error) {
	if config.RetentionDays < 0 || config.CleanupHour < 0 || config.CleanupHour > 23 {
		return nil, fmt.Errorf("%w: retention_days=%d cleanup_hour=%d", ErrInvalidConfig, config.RetentionDays, config.CleanupHour)
	}
	if config.CleanupTimeout <= 0 {
		config.CleanupTimeout = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		sweeper: sweeper,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}, nil
}

// Start starts the daily sweep. It is a no-op when retention is disabled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.config.RetentionDays == 0 {
		s.mu.Unlock()
		s.logger.Info("Invoice retention sweep is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.executeCleanup(ctx)
		}()
	}

	s.wg.Add(1)
	go s.runDailyCleanup(ctx)

	s.logger.Info("Invoice retention sweep started",
		zap.Int("retention_days", s.config.RetentionDays),
		zap.Int("cleanup_hour", s.config.CleanupHour),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *RetentionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Invoice retention sweep stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Invoice retention sweep stop timed out")
		return ctx.Err()
	}
}

// nextRun returns the next occurrence of the cleanup hour after now
func (s *RetentionScheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.CleanupHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *RetentionScheduler) runDailyCleanup(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := s.now()
		next := s.nextRun(now)
		delay := next.Sub(now)

		s.logger.Debug("Invoice retention sweep scheduled",
			zap.Time("next_run", next),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.executeCleanup(ctx)
		}
	}
}

func (s *RetentionScheduler) executeCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, s.config.CleanupTimeout)
	defer cancel()

	age := time.Duration(s.config.RetentionDays) * 24 * time.Hour
	start := time.Now()
	removed, err := s.sweeper.CleanupOlderThan(cleanupCtx, age)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Invoice retention sweep failed",
			zap.Duration("duration", duration),
			zap.Int("removed", removed),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Invoice retention sweep completed",
		zap.Duration("duration", duration),
		zap.Int("removed", removed),
	)
}

// TriggerImmediateCleanup runs a sweep now, in the background
func (s *RetentionScheduler) TriggerImmediateCleanup(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.executeCleanup(ctx)
	}()
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
