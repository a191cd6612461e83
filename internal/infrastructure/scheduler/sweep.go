package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agency/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// SweepRunner performs one re-enterable sweep for the month containing asOf
type SweepRunner interface {
	RunSweep(ctx context.Context, asOf time.Time) error
}

// SweepConfig holds sweep scheduler configuration
type SweepConfig struct {
	// Interval between two sweeps
	Interval time.Duration
	// MonthsAhead sweeps this many months past the current one as well
	MonthsAhead int
	// RunTimeout bounds one sweep; zero means no bound
	RunTimeout time.Duration
}

// Validate checks the configuration
func (c SweepConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.MonthsAhead < 0 {
		return fmt.Errorf("%w: months ahead must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SweepStatus describes the scheduler's last activity
type SweepStatus struct {
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// SweepScheduler drives a SweepRunner on a fixed interval. Sweeps never
// overlap: a tick that arrives while one is running is skipped.
type SweepScheduler struct {
	config SweepConfig
	runner SweepRunner
	logger *zap.Logger
	now    func() time.Time

	sweepMu sync.Mutex

	mu     sync.Mutex
	status SweepStatus
}

// NewSweepScheduler creates a new sweep scheduler
func NewSweepScheduler(config SweepConfig, runner SweepRunner, logger *zap.Logger) (*SweepScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SweepScheduler{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run sweeps once immediately and then on every interval until ctx is
// cancelled. It returns nil on cancellation so it can sit in an errgroup.
func (s *SweepScheduler) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("Sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("months_ahead", s.config.MonthsAhead),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweep scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// TriggerNow runs a sweep synchronously outside the interval
func (s *SweepScheduler) TriggerNow(ctx context.Context) error {
	if !s.Status().Running {
		return ErrSchedulerNotRunning
	}
	if !s.sweepMu.TryLock() {
		return ErrSweepInProgress
	}
	defer s.sweepMu.Unlock()
	return s.sweep(ctx)
}

// Status returns a snapshot of the scheduler state
func (s *SweepScheduler) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *SweepScheduler) tick(ctx context.Context) {
	if !s.sweepMu.TryLock() {
		s.logger.Warn("Previous sweep still running, skipping tick")
		return
	}
	defer s.sweepMu.Unlock()

	if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Sweep failed", zap.Error(err))
	}
	next := s.now().Add(s.config.Interval)
	s.mu.Lock()
	s.status.NextRunAt = &next
	s.mu.Unlock()
}

// sweep runs the current month and each month ahead; a failing month does
// not stop the later ones
func (s *SweepScheduler) sweep(ctx context.Context) error {
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	startedAt := s.now()
	current := valueobject.MonthStart(startedAt)

	var firstErr error
	for k := 0; k <= s.config.MonthsAhead; k++ {
		asOf := current.AddDate(0, k, 0)
		if k == 0 {
			asOf = startedAt
		}
		if err := s.runner.RunSweep(ctx, asOf); err != nil {
			s.logger.Warn("Sweep month failed",
				zap.Time("month", valueobject.MonthStart(asOf)),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.mu.Lock()
	s.status.Runs++
	s.status.LastRunAt = &startedAt
	s.status.LastError = ""
	if firstErr != nil {
		s.status.Failures++
		s.status.LastError = firstErr.Error()
	}
	s.mu.Unlock()

	s.logger.Info("Sweep finished",
		zap.Time("started_at", startedAt),
		zap.Duration("took", s.now().Sub(startedAt)),
		zap.Bool("ok", firstErr == nil),
	)
	return firstErr
}

func (s *SweepScheduler) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}
