package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robbyt/go-supervisor/supervisor"
)

var _ supervisor.Runnable = (*Sweeper)(nil)

// DefaultSweepInterval is how often pending sagas are resumed
const DefaultSweepInterval = 30 * time.Second

// recoverer resumes every non-terminal saga and records its outcome
type recoverer interface {
	RecoverPending(ctx context.Context) (int, error)
}

// Sweeper periodically resumes sagas left pending by a crash, a cancellation or an exhausted compensation.
type Sweeper struct {
	target   recoverer
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(target recoverer, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if target == nil {
		return nil, errors.New("recoverer is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger.WithGroup("host.Sweeper"),
	}, nil
}

// String implements the supervisor.Runnable interface
func (s *Sweeper) String() string {
	return "host.Sweeper"
}

// Run implements the supervisor.Runnable interface.
// A sweep runs immediately, then once per interval until ctx is cancelled or Stop is called.
func (s *Sweeper) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.logger.Debug("Starting sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(runCtx)

		select {
		case <-runCtx.Done():
			s.logger.Info("Sweeper shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// Stop implements the supervisor.Runnable interface
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	recovered, err := s.target.RecoverPending(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("Sweep finished with errors", "recovered", recovered, "error", err)
		return
	}
	if recovered > 0 {
		s.logger.Info("Recovered pending sagas", "count", recovered)
	}
}
