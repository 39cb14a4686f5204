package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/robbyt/go-fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/simaogato/transferflow-backend/internal/domain"
	"github.com/simaogato/transferflow-backend/internal/usecase/saga"
)

const (
	meterName = "github.com/simaogato/transferflow-backend/internal/host"

	// DefaultCompensationTimeout bounds the refund issued after the caller cancelled a transfer
	DefaultCompensationTimeout = 30 * time.Second
)

// StepExecutor issues one ledger operation and classifies its result
type StepExecutor interface {
	Execute(ctx context.Context, step domain.Step) domain.StepOutcome
}

// Host drives transfer sagas to a terminal state.
// It owns what the coordinator leaves out: retries of transient failures, persistence of a
// checkpoint after every transition, resumption from that checkpoint, and compensation
// when the caller cancels after funds were withdrawn.
type Host struct {
	executor    StepExecutor
	checkpoints domain.CheckpointRepository

	policy              RetryPolicy
	compensationTimeout time.Duration

	logger   *slog.Logger
	meter    metric.Meter
	outcomes metric.Int64Counter
	inflight singleflight.Group
	now      func() time.Time
}

// New creates a new Host instance
func New(executor StepExecutor, checkpoints domain.CheckpointRepository, opts ...Option) (*Host, error) {
	if executor == nil {
		return nil, errors.New("step executor is required")
	}
	if checkpoints == nil {
		return nil, errors.New("checkpoint repository is required")
	}

	h := &Host{
		executor:            executor,
		checkpoints:         checkpoints,
		policy:              DefaultRetryPolicy(),
		compensationTimeout: DefaultCompensationTimeout,
		logger:              slog.Default(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if h.compensationTimeout <= 0 {
		return nil, errors.New("compensation timeout must be positive")
	}

	if h.meter == nil {
		h.meter = otel.Meter(meterName)
	}
	counter, err := h.meter.Int64Counter("transfer.outcomes",
		metric.WithDescription("Terminal outcomes of transfer sagas"))
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome counter: %w", err)
	}
	h.outcomes = counter

	h.logger = h.logger.WithGroup("host")
	return h, nil
}

// RunSaga executes the transfer saga of req and returns its terminal outcome.
// An existing checkpoint for the session is resumed rather than restarted.
// Concurrent calls for the same session share a single execution.
func (h *Host) RunSaga(ctx context.Context, req domain.TransferRequest) (domain.TransferOutcome, error) {
	return h.once(req.SessionID, func() (domain.TransferOutcome, error) {
		cp, err := h.checkpoints.Load(ctx, req.SessionID)
		switch {
		case errors.Is(err, domain.ErrCheckpointNotFound):
			cp = domain.NewSagaCheckpoint(req, h.now())
			if err := h.checkpoints.Save(ctx, cp); err != nil {
				return domain.TransferOutcome{}, fmt.Errorf("failed to schedule transfer %s: %w", req.SessionID, err)
			}
		case err != nil:
			return domain.TransferOutcome{}, fmt.Errorf("failed to load checkpoint for %s: %w", req.SessionID, err)
		case cp.Request.ReferenceID != req.ReferenceID:
			return domain.TransferOutcome{}, fmt.Errorf(
				"session %s already belongs to reference %s", req.SessionID, cp.Request.ReferenceID)
		}
		return h.drive(ctx, cp)
	})
}

// Resume continues the saga of a session from its last checkpoint.
// A terminal checkpoint returns its recorded outcome without issuing any ledger call.
func (h *Host) Resume(ctx context.Context, sessionID string) (domain.TransferOutcome, error) {
	return h.once(sessionID, func() (domain.TransferOutcome, error) {
		cp, err := h.checkpoints.Load(ctx, sessionID)
		if err != nil {
			return domain.TransferOutcome{}, fmt.Errorf("failed to load checkpoint for %s: %w", sessionID, err)
		}
		return h.drive(ctx, cp)
	})
}

// Pending lists the checkpoints of every saga that has not reached a terminal state
func (h *Host) Pending(ctx context.Context) ([]domain.SagaCheckpoint, error) {
	pending, err := h.checkpoints.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sagas: %w", err)
	}
	return pending, nil
}

func (h *Host) once(sessionID string, fn func() (domain.TransferOutcome, error)) (domain.TransferOutcome, error) {
	v, err, shared := h.inflight.Do(sessionID, func() (any, error) {
		return fn()
	})
	if shared {
		h.logger.Debug("Joined in-flight saga", "sessionID", sessionID)
	}
	outcome, _ := v.(domain.TransferOutcome)
	return outcome, err
}

// drive runs the checkpoint to a terminal state, or compensates when ctx is cancelled first
func (h *Host) drive(ctx context.Context, cp domain.SagaCheckpoint) (domain.TransferOutcome, error) {
	initial := cp.State
	machine, err := saga.NewMachine(h.logger.Handler(), cp.State)
	if err != nil {
		return domain.TransferOutcome{}, fmt.Errorf("failed to create saga state machine: %w", err)
	}

	if cp.State == domain.SagaStateStart {
		if cp, err = h.commit(ctx, machine, cp, saga.Begin(cp)); err != nil {
			return domain.TransferOutcome{}, err
		}
	}

	cp, inFlight, err := h.loop(ctx, machine, cp)
	if err != nil {
		if ctx.Err() == nil {
			return domain.TransferOutcome{}, err
		}
		cp = h.compensate(ctx, machine, cp, inFlight, err)
		if outcome, ok := saga.Outcome(cp); ok {
			h.report(cp, outcome)
			return outcome, fmt.Errorf("transfer %s cancelled: %w", cp.SessionID, err)
		}
		h.logger.Warn("Saga interrupted before reaching a terminal state, left for recovery",
			"sessionID", cp.SessionID, "state", cp.State, "error", err)
		return domain.TransferOutcome{}, fmt.Errorf("transfer %s interrupted in state %s: %w", cp.SessionID, cp.State, err)
	}

	outcome, _ := saga.Outcome(cp)
	if !initial.IsTerminal() {
		h.report(cp, outcome)
	}
	return outcome, nil
}

// loop issues steps until the saga is terminal.
// inFlight reports that ctx was cancelled while a step was outstanding at the ledger.
func (h *Host) loop(ctx context.Context, machine *fsm.Machine, cp domain.SagaCheckpoint) (domain.SagaCheckpoint, bool, error) {
	for !cp.State.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return cp, false, err
		}

		step, ok := saga.NextStep(cp)
		if !ok {
			return cp, false, fmt.Errorf("no step to issue in state %s", cp.State)
		}

		outcome, exhausted := h.execute(ctx, step)
		if err := ctx.Err(); err != nil && outcome.Kind == domain.OutcomeTransientFailure {
			return cp, true, err
		}

		next, err := h.commit(ctx, machine, cp, saga.Advance(cp, outcome, exhausted))
		if err != nil {
			return cp, false, err
		}
		cp = next
	}
	return cp, false, nil
}

// execute issues the step, retrying transient failures per the retry policy.
// exhausted is true when the final outcome is still a TransientFailure.
func (h *Host) execute(ctx context.Context, step domain.Step) (domain.StepOutcome, bool) {
	var outcome domain.StepOutcome

	opts := append(h.policy.options(),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrTransient)
		}),
		retry.OnRetry(func(n uint, err error) {
			h.logger.Warn("Retrying step",
				"sessionID", step.SessionID, "step", step.Name, "attempt", n+1, "error", err)
		}),
	)

	err := retry.Do(func() error {
		outcome = h.executor.Execute(ctx, step)
		if outcome.Kind == domain.OutcomeTransientFailure {
			return outcome.Err
		}
		return nil
	}, opts...)

	return outcome, err != nil && outcome.Kind == domain.OutcomeTransientFailure
}

// compensate finishes a saga whose caller cancelled ctx, under a detached bounded context.
// An interrupted deposit is re-issued once with its own token first: the ledger either reports
// the deposit that already landed or applies it, and only a failed deposit leads to the refund.
func (h *Host) compensate(
	ctx context.Context,
	machine *fsm.Machine,
	cp domain.SagaCheckpoint,
	inFlight bool,
	cause error,
) domain.SagaCheckpoint {
	switch cp.State {
	case domain.SagaStateDepositing, domain.SagaStateRefunding:
	default:
		// Nothing was withdrawn yet or the saga is terminal
		return cp
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.compensationTimeout)
	defer cancel()

	h.logger.Warn("Transfer cancelled after withdrawal, compensating",
		"sessionID", cp.SessionID, "state", cp.State, "cause", cause)

	if cp.State == domain.SagaStateDepositing {
		if inFlight {
			step, _ := saga.NextStep(cp)
			if outcome := h.executor.Execute(cctx, step); outcome.Kind == domain.OutcomeConfirmed {
				next, err := h.commit(cctx, machine, cp, saga.Advance(cp, outcome, false))
				if err != nil {
					h.logger.Error("Failed to settle interrupted deposit", "sessionID", cp.SessionID, "error", err)
				}
				return next
			}
		}
		next, err := h.commit(cctx, machine, cp, saga.Interrupt(cp, cause))
		if err != nil {
			h.logger.Error("Failed to begin compensation", "sessionID", cp.SessionID, "error", err)
			return cp
		}
		cp = next
	}

	cp, _, err := h.loop(cctx, machine, cp)
	if err != nil {
		h.logger.Error("Compensation did not finish, left for recovery",
			"sessionID", cp.SessionID, "state", cp.State, "error", err)
	}
	return cp
}

// commit validates the transition against the saga state machine and persists the checkpoint.
// A persistence failure is logged and does not stop the saga: step tokens keep a replay safe.
func (h *Host) commit(ctx context.Context, machine *fsm.Machine, prev, next domain.SagaCheckpoint) (domain.SagaCheckpoint, error) {
	if next.State != prev.State {
		if err := machine.Transition(string(next.State)); err != nil {
			return prev, fmt.Errorf("illegal saga transition %s -> %s: %w", prev.State, next.State, err)
		}
	}
	next.UpdatedAt = h.now()

	if err := h.checkpoints.Save(context.WithoutCancel(ctx), next); err != nil {
		h.logger.Error("Failed to persist saga checkpoint",
			"sessionID", next.SessionID, "state", next.State, "error", err)
	}
	return next, nil
}

// report records the terminal outcome; a failed compensation is logged for immediate operator action
func (h *Host) report(cp domain.SagaCheckpoint, outcome domain.TransferOutcome) {
	h.outcomes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("status", string(outcome.Status)),
		attribute.Bool("requires_remediation", outcome.RequiresRemediation),
	))

	req := cp.Request
	switch {
	case outcome.Status == domain.TransferStatusCompleted:
		h.logger.Info("Transfer completed",
			"sessionID", cp.SessionID, "referenceID", req.ReferenceID,
			"confirmationID", outcome.DepositConfirmation)
	case outcome.Status == domain.TransferStatusCompensatedFailure:
		h.logger.Warn("Transfer failed and was refunded",
			"sessionID", cp.SessionID, "referenceID", req.ReferenceID,
			"refundConfirmationID", outcome.RefundConfirmation, "reason", outcome.Reason)
	case outcome.RequiresRemediation:
		h.logger.Error("ALERT: compensation failed, funds withdrawn but not returned; manual remediation required",
			"alert", true,
			"sessionID", cp.SessionID,
			"referenceID", req.ReferenceID,
			"sourceAccount", req.SourceAccount,
			"targetAccount", req.TargetAccount,
			"amount", req.Amount.String(),
			"withdrawConfirmationID", cp.WithdrawConfirmation,
			"depositFailure", cp.DepositFailure,
			"reason", outcome.Reason)
	case cp.WithdrawalUncertain:
		h.logger.Error("ALERT: withdrawal gave up on transient failures and may have been applied; reconcile with the ledger",
			"alert", true,
			"sessionID", cp.SessionID,
			"referenceID", req.ReferenceID,
			"sourceAccount", req.SourceAccount,
			"amount", req.Amount.String(),
			"withdrawalToken", string(domain.DeriveToken(req.ReferenceID, domain.StepWithdrawal)),
			"reason", outcome.Reason)
	default:
		h.logger.Warn("Transfer failed before funds moved",
			"sessionID", cp.SessionID, "referenceID", req.ReferenceID, "reason", outcome.Reason)
	}
}
