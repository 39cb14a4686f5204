package saga

import (
	"github.com/simaogato/transferflow-backend/internal/domain"
)

// The coordinator is a set of pure functions over a checkpoint. It performs no I/O and
// holds no timers, so any host able to persist a domain.SagaCheckpoint can drive it and
// replay it after a crash.

// Begin moves a fresh checkpoint into the withdrawal step
func Begin(cp domain.SagaCheckpoint) domain.SagaCheckpoint {
	if cp.State == domain.SagaStateStart {
		cp.State = domain.SagaStateWithdrawing
	}
	return cp
}

// NextStep returns the ledger operation to issue in the checkpoint's current state.
// Returns false when the saga has not begun or is terminal.
func NextStep(cp domain.SagaCheckpoint) (domain.Step, bool) {
	req := cp.Request
	step := domain.Step{
		SessionID: cp.SessionID,
		Amount:    req.Amount,
	}

	switch cp.State {
	case domain.SagaStateWithdrawing:
		step.Name = domain.StepWithdrawal
		step.Account = req.SourceAccount
	case domain.SagaStateDepositing:
		step.Name = domain.StepDeposit
		step.Account = req.TargetAccount
	case domain.SagaStateRefunding:
		// The refund returns exactly the withdrawn amount to the source account
		step.Name = domain.StepRefund
		step.Account = req.SourceAccount
	default:
		return domain.Step{}, false
	}

	step.Token = domain.DeriveToken(req.ReferenceID, step.Name)
	return step, true
}

// Advance applies the final outcome of the current step and returns the next checkpoint.
// exhausted reports that the host stopped retrying a TransientFailure; a transient outcome
// within the retry budget leaves the checkpoint unchanged so the same step is issued again.
func Advance(cp domain.SagaCheckpoint, outcome domain.StepOutcome, exhausted bool) domain.SagaCheckpoint {
	if outcome.Kind == domain.OutcomeTransientFailure && !exhausted {
		return cp
	}

	switch cp.State {
	case domain.SagaStateWithdrawing:
		return advanceWithdrawing(cp, outcome)
	case domain.SagaStateDepositing:
		return advanceDepositing(cp, outcome)
	case domain.SagaStateRefunding:
		return advanceRefunding(cp, outcome)
	default:
		return cp
	}
}

func advanceWithdrawing(cp domain.SagaCheckpoint, outcome domain.StepOutcome) domain.SagaCheckpoint {
	switch outcome.Kind {
	case domain.OutcomeConfirmed:
		cp.WithdrawConfirmation = outcome.ConfirmationID
		cp.State = domain.SagaStateDepositing
	case domain.OutcomeInvalidAccount:
		// No funds moved, nothing to compensate
		cp.FailureReason = "withdrawal rejected: " + outcome.Reason()
		cp.State = domain.SagaStateUnrecoverableFailure
	case domain.OutcomeTransientFailure:
		cp.FailureReason = "withdrawal failed after retries: " + outcome.Reason()
		cp.WithdrawalUncertain = true
		cp.State = domain.SagaStateUnrecoverableFailure
	}
	return cp
}

func advanceDepositing(cp domain.SagaCheckpoint, outcome domain.StepOutcome) domain.SagaCheckpoint {
	switch outcome.Kind {
	case domain.OutcomeConfirmed:
		cp.DepositConfirmation = outcome.ConfirmationID
		cp.State = domain.SagaStateCompleted
	case domain.OutcomeInvalidAccount, domain.OutcomeTransientFailure:
		// Money already left the source account and must return
		cp.DepositFailure = "deposit failed: " + outcome.Reason()
		cp.State = domain.SagaStateRefunding
	}
	return cp
}

func advanceRefunding(cp domain.SagaCheckpoint, outcome domain.StepOutcome) domain.SagaCheckpoint {
	switch outcome.Kind {
	case domain.OutcomeConfirmed:
		cp.RefundConfirmation = outcome.ConfirmationID
		cp.State = domain.SagaStateCompensatedFailure
	case domain.OutcomeInvalidAccount, domain.OutcomeTransientFailure:
		cp.FailureReason = "refund failed: " + outcome.Reason() + " (after " + cp.DepositFailure + ")"
		cp.State = domain.SagaStateUnrecoverableFailure
	}
	return cp
}

// Interrupt applies a cancellation of the in-flight saga.
// Once the withdrawal is confirmed, the deposit is abandoned and the refund becomes the next step.
// Before that, the checkpoint is left as is: resuming it re-issues the withdrawal with the same token.
func Interrupt(cp domain.SagaCheckpoint, cause error) domain.SagaCheckpoint {
	if cp.State != domain.SagaStateDepositing {
		return cp
	}
	reason := "interrupted"
	if cause != nil {
		reason = cause.Error()
	}
	cp.DepositFailure = "deposit interrupted: " + reason
	cp.State = domain.SagaStateRefunding
	return cp
}

// Outcome returns the transfer outcome of a terminal checkpoint, false otherwise
func Outcome(cp domain.SagaCheckpoint) (domain.TransferOutcome, bool) {
	switch cp.State {
	case domain.SagaStateCompleted:
		return domain.Completed(cp.DepositConfirmation), true
	case domain.SagaStateCompensatedFailure:
		return domain.CompensatedFailure(cp.RefundConfirmation, cp.DepositFailure), true
	case domain.SagaStateUnrecoverableFailure:
		return domain.UnrecoverableFailure(cp.FailureReason, cp.FundsWithdrawn()), true
	default:
		return domain.TransferOutcome{}, false
	}
}
