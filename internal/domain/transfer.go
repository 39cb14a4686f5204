package domain

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// AmountPrecision is the number of decimal places a transfer amount may carry (minor currency unit)
const AmountPrecision int32 = 2

// TransferRequest is the immutable input of a money transfer saga.
// ReferenceID identifies the logical transfer and may be reused when the caller retries it;
// SessionID identifies one execution attempt.
type TransferRequest struct {
	SourceAccount string          `json:"source_account"`
	TargetAccount string          `json:"target_account"`
	Amount        decimal.Decimal `json:"amount"` // Always positive, never floating point
	ReferenceID   string          `json:"reference_id"`
	SessionID     string          `json:"session_id"`
}

// Validate ensures the request can be executed.
// Returns an error wrapping ErrInvalidTransfer if validation fails.
func (r TransferRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.SourceAccount, validation.Required),
		validation.Field(&r.TargetAccount,
			validation.Required,
			validation.NotIn(r.SourceAccount).Error("must differ from source_account"),
		),
		validation.Field(&r.Amount, validation.By(validateAmount)),
		validation.Field(&r.ReferenceID, validation.Required),
		validation.Field(&r.SessionID, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}
	return nil
}

func validateAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal amount")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("must be positive")
	}
	if !amount.Equal(amount.Truncate(AmountPrecision)) {
		return fmt.Errorf("must not have more than %d decimal places", AmountPrecision)
	}
	return nil
}

// TransferStatus is the status of a transfer saga
type TransferStatus string

const (
	// TransferStatusPending is recorded for a transfer whose saga has not reached a terminal state yet
	TransferStatusPending              TransferStatus = "PENDING"
	TransferStatusCompleted            TransferStatus = "COMPLETED"
	TransferStatusCompensatedFailure   TransferStatus = "COMPENSATED_FAILURE"
	TransferStatusUnrecoverableFailure TransferStatus = "UNRECOVERABLE_FAILURE"
)

// TransferOutcome is the terminal result of a saga.
//   - Completed: DepositConfirmation is set
//   - CompensatedFailure: RefundConfirmation and Reason (the original deposit failure) are set
//   - UnrecoverableFailure: Reason is set; RequiresRemediation is true when money left the source account
type TransferOutcome struct {
	Status              TransferStatus `json:"status"`
	DepositConfirmation string         `json:"deposit_confirmation,omitempty"`
	RefundConfirmation  string         `json:"refund_confirmation,omitempty"`
	Reason              string         `json:"reason,omitempty"`
	RequiresRemediation bool           `json:"requires_remediation,omitempty"`
}

// Completed builds a successful outcome
func Completed(depositConfirmation string) TransferOutcome {
	return TransferOutcome{
		Status:              TransferStatusCompleted,
		DepositConfirmation: depositConfirmation,
	}
}

// CompensatedFailure builds an outcome for a transfer whose withdrawal was refunded
func CompensatedFailure(refundConfirmation, reason string) TransferOutcome {
	return TransferOutcome{
		Status:             TransferStatusCompensatedFailure,
		RefundConfirmation: refundConfirmation,
		Reason:             reason,
	}
}

// UnrecoverableFailure builds an outcome for a transfer that could not complete nor be compensated
func UnrecoverableFailure(reason string, requiresRemediation bool) TransferOutcome {
	return TransferOutcome{
		Status:              TransferStatusUnrecoverableFailure,
		Reason:              reason,
		RequiresRemediation: requiresRemediation,
	}
}

// TransferRecord is the persisted view of a submitted transfer and its outcome
type TransferRecord struct {
	Request   TransferRequest
	Outcome   TransferOutcome
	CreatedAt time.Time
	UpdatedAt time.Time
}
