package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// BankingService is the external ledger holding source and target accounts.
// Calling Withdraw or Deposit twice with the same token must not apply the operation twice.
type BankingService interface {
	// Withdraw debits account and returns the ledger confirmation id
	Withdraw(ctx context.Context, account string, amount decimal.Decimal, token StepToken) (string, error)

	// Deposit credits account and returns the ledger confirmation id
	Deposit(ctx context.Context, account string, amount decimal.Decimal, token StepToken) (string, error)
}

// SessionRepository defines the interface for session record persistence operations.
// Implementations must support concurrent upserts for different session ids.
type SessionRepository interface {
	// Create stores a new session record, keeping any flags already set for the same session id
	Create(ctx context.Context, record *SessionRecord) error

	// MarkAttempted upserts the flag of the given step to true
	MarkAttempted(ctx context.Context, sessionID string, step StepName) error

	// GetByID retrieves a session record, returns ErrSessionNotFound if absent
	GetByID(ctx context.Context, sessionID string) (*SessionRecord, error)
}

// CheckpointRepository defines the interface for saga checkpoint persistence operations
type CheckpointRepository interface {
	// Save creates or replaces the checkpoint of a session
	Save(ctx context.Context, checkpoint SagaCheckpoint) error

	// Load retrieves the checkpoint of a session, returns ErrCheckpointNotFound if absent
	Load(ctx context.Context, sessionID string) (SagaCheckpoint, error)

	// ListPending retrieves every checkpoint that has not reached a terminal state
	ListPending(ctx context.Context) ([]SagaCheckpoint, error)
}

// TransferRepository defines the interface for transfer record persistence operations
type TransferRepository interface {
	// Save creates or updates the record of a transfer, keyed by session id
	Save(ctx context.Context, record *TransferRecord) error

	// GetBySessionID retrieves a transfer record, returns ErrTransferNotFound if absent
	GetBySessionID(ctx context.Context, sessionID string) (*TransferRecord, error)

	// ListByReferenceID retrieves every attempt of a logical transfer, oldest first
	ListByReferenceID(ctx context.Context, referenceID string) ([]*TransferRecord, error)
}
