package step

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

const tracerName = "github.com/simaogato/transferflow-backend/internal/usecase/step"

// AttemptRecorder persists that a step was issued for a session
type AttemptRecorder interface {
	MarkAttempted(ctx context.Context, sessionID string, step domain.StepName) error
}

// Executor issues a single ledger operation per call and classifies its result.
// It never retries: retry timing and attempt counting belong to the execution host.
type Executor struct {
	Bank     domain.BankingService
	Recorder AttemptRecorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger used by the executor
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used to record one span per step
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewExecutor creates a new Executor instance
func NewExecutor(bank domain.BankingService, recorder AttemptRecorder, opts ...Option) *Executor {
	e := &Executor{
		Bank:     bank,
		Recorder: recorder,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithGroup("stepExecutor")
	return e
}

// Execute issues the ledger call of the step.
// Logic:
//  1. Record the step as attempted (best effort, before the ledger call)
//  2. withdrawal -> Withdraw(account); deposit and refund -> Deposit(account)
//  3. Classify any failure as InvalidAccount (permanent) or TransientFailure (retriable)
func (e *Executor) Execute(ctx context.Context, s domain.Step) domain.StepOutcome {
	ctx, span := e.tracer.Start(ctx, "transfer."+string(s.Name),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("transfer.session_id", s.SessionID),
			attribute.String("transfer.step", string(s.Name)),
			attribute.String("transfer.account", s.Account),
			attribute.String("transfer.amount", s.Amount.String()),
			attribute.String("transfer.token", string(s.Token)),
		),
	)
	defer span.End()

	if !s.Name.IsValid() {
		err := fmt.Errorf("unknown step %q", s.Name)
		span.SetStatus(codes.Error, err.Error())
		return domain.InvalidAccount(err)
	}

	// Failure is already logged by the recorder and must not block the ledger call
	if e.Recorder != nil {
		_ = e.Recorder.MarkAttempted(ctx, s.SessionID, s.Name)
	}

	var (
		confirmation string
		err          error
	)
	switch s.Name {
	case domain.StepWithdrawal:
		confirmation, err = e.Bank.Withdraw(ctx, s.Account, s.Amount, s.Token)
	case domain.StepDeposit, domain.StepRefund:
		confirmation, err = e.Bank.Deposit(ctx, s.Account, s.Amount, s.Token)
	}

	if err != nil {
		outcome := domain.ClassifyLedgerError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome.Kind))
		span.SetAttributes(attribute.String("transfer.outcome", string(outcome.Kind)))

		if outcome.Kind == domain.OutcomeInvalidAccount {
			e.logger.Warn("Ledger rejected account",
				"step", s.Name, "sessionID", s.SessionID, "account", s.Account, "error", err)
		} else {
			e.logger.Error("Ledger call failed",
				"step", s.Name, "sessionID", s.SessionID, "token", s.Token, "error", err)
		}
		return outcome
	}

	span.SetAttributes(
		attribute.String("transfer.outcome", string(domain.OutcomeConfirmed)),
		attribute.String("transfer.confirmation_id", confirmation),
	)
	e.logger.Debug("Ledger call confirmed",
		"step", s.Name, "sessionID", s.SessionID, "confirmationID", confirmation)
	return domain.Confirmed(confirmation)
}
