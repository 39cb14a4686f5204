package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// StepName identifies a financial operation of the transfer saga
type StepName string

const (
	StepWithdrawal StepName = "withdrawal"
	StepDeposit    StepName = "deposit"
	StepRefund     StepName = "refund"
)

// IsValid reports whether the step name is one of the saga steps
func (s StepName) IsValid() bool {
	switch s {
	case StepWithdrawal, StepDeposit, StepRefund:
		return true
	default:
		return false
	}
}

// SessionField returns the session record flag recording that this step was attempted
func (s StepName) SessionField() string {
	switch s {
	case StepWithdrawal:
		return "withdraw"
	case StepDeposit:
		return "deposit"
	case StepRefund:
		return "refund"
	default:
		return ""
	}
}

// StepToken is the idempotency token sent to the ledger for one step of one logical transfer
type StepToken string

// DeriveToken returns the idempotency token for a step of the transfer identified by referenceID.
// The token depends on nothing else, so re-running a step after a crash reuses it.
func DeriveToken(referenceID string, step StepName) StepToken {
	return StepToken(referenceID + "-" + string(step))
}

// Step is a single ledger operation to be issued by the step executor
type Step struct {
	Name      StepName
	SessionID string
	Account   string
	Amount    decimal.Decimal
	Token     StepToken
}

// OutcomeKind classifies the result of a step
type OutcomeKind string

const (
	OutcomeConfirmed        OutcomeKind = "CONFIRMED"
	OutcomeInvalidAccount   OutcomeKind = "INVALID_ACCOUNT"
	OutcomeTransientFailure OutcomeKind = "TRANSIENT_FAILURE"
)

// StepOutcome is the classified result of one step execution.
// ConfirmationID is set only for OutcomeConfirmed; Err is set for both failure kinds.
type StepOutcome struct {
	Kind           OutcomeKind
	ConfirmationID string
	Err            error
}

// Confirmed builds a successful step outcome
func Confirmed(confirmationID string) StepOutcome {
	return StepOutcome{Kind: OutcomeConfirmed, ConfirmationID: confirmationID}
}

// InvalidAccount builds a permanent failure outcome
func InvalidAccount(err error) StepOutcome {
	return StepOutcome{Kind: OutcomeInvalidAccount, Err: err}
}

// TransientFailure builds a retriable failure outcome
func TransientFailure(err error) StepOutcome {
	return StepOutcome{Kind: OutcomeTransientFailure, Err: err}
}

// ClassifyLedgerError maps a ledger error onto a step outcome.
// Anything that is not an invalid account is considered retriable and wrapped with ErrTransient.
func ClassifyLedgerError(err error) StepOutcome {
	if errors.Is(err, ErrInvalidAccount) {
		return InvalidAccount(err)
	}
	if !errors.Is(err, ErrTransient) {
		err = fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return TransientFailure(err)
}

// Reason returns a human readable failure reason, empty for confirmed outcomes
func (o StepOutcome) Reason() string {
	if o.Err == nil {
		if o.Kind == OutcomeConfirmed {
			return ""
		}
		return string(o.Kind)
	}
	return o.Err.Error()
}
