package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// Tracker records which saga steps were issued for each session.
// It is best effort: failures are logged and returned, and callers continue regardless.
// The step token, not this record, guards against duplicate ledger operations.
type Tracker struct {
	Repo   domain.SessionRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a new Tracker instance
func NewTracker(repo domain.SessionRepository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		Repo:   repo,
		logger: logger.WithGroup("sessionTracker"),
		now:    time.Now,
	}
}

// Open creates the session record for a transfer attempt before its first step is issued
func (t *Tracker) Open(ctx context.Context, req domain.TransferRequest) error {
	if err := t.Repo.Create(ctx, domain.NewSessionRecord(req, t.now())); err != nil {
		t.logger.Warn("Failed to create session record",
			"sessionID", req.SessionID, "referenceID", req.ReferenceID, "error", err)
		return fmt.Errorf("failed to create session %s: %w", req.SessionID, err)
	}
	t.logger.Debug("Session opened", "sessionID", req.SessionID, "referenceID", req.ReferenceID)
	return nil
}

// MarkAttempted persists that the named step was issued for the session
func (t *Tracker) MarkAttempted(ctx context.Context, sessionID string, step domain.StepName) error {
	if !step.IsValid() {
		return fmt.Errorf("unknown step %q", step)
	}
	if err := t.Repo.MarkAttempted(ctx, sessionID, step); err != nil {
		t.logger.Warn("Failed to record step attempt",
			"sessionID", sessionID, "step", step, "error", err)
		return fmt.Errorf("failed to mark %s attempted for session %s: %w", step, sessionID, err)
	}
	return nil
}

// Get retrieves the session record of a session
func (t *Tracker) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	return t.Repo.GetByID(ctx, sessionID)
}
