package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// SubmitInput represents the input for submitting a transfer
type SubmitInput struct {
	SourceAccount string
	TargetAccount string
	Amount        decimal.Decimal
	ReferenceID   string
	SessionID     string // Optional: generated when empty
}

// SagaRunner executes a transfer saga to a terminal outcome
type SagaRunner interface {
	RunSaga(ctx context.Context, req domain.TransferRequest) (domain.TransferOutcome, error)
	Resume(ctx context.Context, sessionID string) (domain.TransferOutcome, error)
	Pending(ctx context.Context) ([]domain.SagaCheckpoint, error)
}

// SessionTracker opens and reads session records
type SessionTracker interface {
	Open(ctx context.Context, req domain.TransferRequest) error
	Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
}

// TransferService handles transfer submission and lookup
type TransferService struct {
	Runner       SagaRunner
	Sessions     SessionTracker
	TransferRepo domain.TransferRepository
	logger       *slog.Logger
	now          func() time.Time
}

// NewTransferService creates a new TransferService instance
func NewTransferService(runner SagaRunner, sessions SessionTracker, transferRepo domain.TransferRepository, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{
		Runner:       runner,
		Sessions:     sessions,
		TransferRepo: transferRepo,
		logger:       logger.WithGroup("transferService"),
		now:          time.Now,
	}
}

// Submit runs a transfer and returns its outcome
// Logic:
//  1. Assign a session id when absent, validate the request
//  2. Reject a session id already recorded for another reference
//  3. Open the session record (best effort)
//  4. Record the transfer as PENDING
//  5. Run the saga and record its terminal outcome
//
// When the saga does not reach a terminal state, the returned error says why and the record stays PENDING
// for the recovery sweeper.
func (s *TransferService) Submit(ctx context.Context, input SubmitInput) (domain.TransferRequest, domain.TransferOutcome, error) {
	// 1. Assign a session id, validate
	req := domain.TransferRequest{
		SourceAccount: input.SourceAccount,
		TargetAccount: input.TargetAccount,
		Amount:        input.Amount,
		ReferenceID:   input.ReferenceID,
		SessionID:     input.SessionID,
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return req, domain.TransferOutcome{}, err
	}

	// 2. A session belongs to a single reference; nothing is written for a conflicting request
	record, err := s.TransferRepo.GetBySessionID(ctx, req.SessionID)
	switch {
	case errors.Is(err, domain.ErrTransferNotFound):
		record = nil
	case err != nil:
		return req, domain.TransferOutcome{}, fmt.Errorf("failed to look up transfer %s: %w", req.SessionID, err)
	case record.Request.ReferenceID != req.ReferenceID:
		return req, domain.TransferOutcome{}, fmt.Errorf("%w: session %s already belongs to reference %s",
			domain.ErrInvalidTransfer, req.SessionID, record.Request.ReferenceID)
	}

	if record == nil {
		// 3. Open the session record; the tracker already logged a failure
		_ = s.Sessions.Open(ctx, req)

		// 4. Record the transfer as pending
		now := s.now()
		record = &domain.TransferRecord{
			Request:   req,
			Outcome:   domain.TransferOutcome{Status: domain.TransferStatusPending},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.TransferRepo.Save(ctx, record); err != nil {
			return req, domain.TransferOutcome{}, fmt.Errorf("failed to record transfer: %w", err)
		}
	}

	// 5. Run the saga
	outcome, runErr := s.Runner.RunSaga(ctx, req)
	if outcome.Status != "" {
		s.settle(ctx, record, outcome)
	}
	if runErr != nil {
		s.logger.Warn("Transfer did not finish",
			"sessionID", req.SessionID, "referenceID", req.ReferenceID, "status", outcome.Status, "error", runErr)
		return req, outcome, runErr
	}

	return req, outcome, nil
}

// RecoverPending resumes every saga left in a non-terminal state and records its outcome.
// Returns the number of sagas that reached a terminal state during this pass.
func (s *TransferService) RecoverPending(ctx context.Context) (int, error) {
	pending, err := s.Runner.Pending(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	var errs []error
	for _, cp := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		s.logger.Info("Resuming transfer", "sessionID", cp.SessionID, "state", cp.State)
		outcome, err := s.Runner.Resume(ctx, cp.SessionID)
		if err != nil {
			s.logger.Error("Failed to resume transfer", "sessionID", cp.SessionID, "error", err)
			errs = append(errs, err)
			continue
		}
		recovered++

		record, err := s.TransferRepo.GetBySessionID(ctx, cp.SessionID)
		switch {
		case errors.Is(err, domain.ErrTransferNotFound):
			record = &domain.TransferRecord{Request: cp.Request, CreatedAt: cp.CreatedAt}
		case err != nil:
			s.logger.Error("Failed to load transfer record", "sessionID", cp.SessionID, "error", err)
			errs = append(errs, fmt.Errorf("failed to load transfer %s: %w", cp.SessionID, err))
			continue
		}
		s.settle(ctx, record, outcome)
	}
	return recovered, errors.Join(errs...)
}

// settle stores the terminal outcome on the transfer record, even when ctx was cancelled
func (s *TransferService) settle(ctx context.Context, record *domain.TransferRecord, outcome domain.TransferOutcome) {
	record.Outcome = outcome
	record.UpdatedAt = s.now()
	if err := s.TransferRepo.Save(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("Failed to record transfer outcome",
			"sessionID", record.Request.SessionID, "status", outcome.Status, "error", err)
	}
}

// Get retrieves the record of a transfer by session id
func (s *TransferService) Get(ctx context.Context, sessionID string) (*domain.TransferRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id: cannot be blank", domain.ErrInvalidTransfer)
	}
	return s.TransferRepo.GetBySessionID(ctx, sessionID)
}

// Session retrieves the session record of a transfer attempt
func (s *TransferService) Session(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id: cannot be blank", domain.ErrInvalidTransfer)
	}
	record, err := s.Sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return record, err
}

// Attempts retrieves every submitted attempt of a logical transfer, oldest first
func (s *TransferService) Attempts(ctx context.Context, referenceID string) ([]*domain.TransferRecord, error) {
	if referenceID == "" {
		return nil, fmt.Errorf("%w: reference_id: cannot be blank", domain.ErrInvalidTransfer)
	}
	return s.TransferRepo.ListByReferenceID(ctx, referenceID)
}
