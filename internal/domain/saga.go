package domain

import "time"

// SagaState is the position of a transfer saga in its lifecycle
type SagaState string

const (
	SagaStateStart                SagaState = "start"
	SagaStateWithdrawing          SagaState = "withdrawing"
	SagaStateDepositing           SagaState = "depositing"
	SagaStateRefunding            SagaState = "refunding"
	SagaStateCompleted            SagaState = "completed"
	SagaStateCompensatedFailure   SagaState = "compensated_failure"
	SagaStateUnrecoverableFailure SagaState = "unrecoverable_failure"
)

// IsTerminal reports whether no further step will be issued from this state
func (s SagaState) IsTerminal() bool {
	switch s {
	case SagaStateCompleted, SagaStateCompensatedFailure, SagaStateUnrecoverableFailure:
		return true
	default:
		return false
	}
}

// SagaCheckpoint is the durable state of one saga execution, keyed by session id.
// The execution host persists it after every transition and resumes from it after a restart.
type SagaCheckpoint struct {
	SessionID string
	Request   TransferRequest
	State     SagaState

	WithdrawConfirmation string
	DepositConfirmation  string
	RefundConfirmation   string

	// DepositFailure is the reason the deposit failed, reported with the compensated outcome
	DepositFailure string
	// FailureReason is set when the saga ended in UnrecoverableFailure
	FailureReason string
	// WithdrawalUncertain marks a withdrawal that gave up on transient failures; the ledger may have applied it
	WithdrawalUncertain bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSagaCheckpoint creates the checkpoint of a saga that has not issued any step yet
func NewSagaCheckpoint(req TransferRequest, now time.Time) SagaCheckpoint {
	return SagaCheckpoint{
		SessionID: req.SessionID,
		Request:   req,
		State:     SagaStateStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FundsWithdrawn reports whether the source account has been debited
func (c SagaCheckpoint) FundsWithdrawn() bool {
	return c.WithdrawConfirmation != ""
}
