package transfer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bankmemory "github.com/simaogato/transferflow-backend/internal/adapter/bank/memory"
	"github.com/simaogato/transferflow-backend/internal/adapter/repository/memory"
	"github.com/simaogato/transferflow-backend/internal/domain"
	"github.com/simaogato/transferflow-backend/internal/host"
	"github.com/simaogato/transferflow-backend/internal/usecase/session"
	"github.com/simaogato/transferflow-backend/internal/usecase/step"
)

// newLedgerService wires the service to the in-memory ledger and stores
func newLedgerService(t *testing.T) (*TransferService, *bankmemory.Ledger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger := bankmemory.NewLedger()
	require.NoError(t, ledger.OpenAccount("85-150", decimal.NewFromInt(2000)))
	require.NoError(t, ledger.OpenAccount("43-812", decimal.NewFromInt(500)))

	tracker := session.NewTracker(memory.NewSessionRepository(), logger)
	executor := step.NewExecutor(ledger, tracker, step.WithLogger(logger))
	h, err := host.New(executor, memory.NewCheckpointRepository(),
		host.WithLogger(logger),
		host.WithRetryPolicy(host.RetryPolicy{MaxAttempts: 2, WaitMin: time.Millisecond, WaitMax: time.Millisecond}),
	)
	require.NoError(t, err)

	return NewTransferService(h, tracker, memory.NewTransferRepository(), logger), ledger
}

func TestRecoverPending_SettlesInterruptedTransfer(t *testing.T) {
	svc, ledger := newLedgerService(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	input := validInput()
	input.SessionID = "s-2"
	_, _, err := svc.Submit(cancelled, input)
	require.ErrorIs(t, err, context.Canceled)

	record, err := svc.Get(context.Background(), "s-2")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, record.Outcome.Status)

	recovered, err := svc.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	record, err = svc.Get(context.Background(), "s-2")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusCompleted, record.Outcome.Status)
	assert.NotEmpty(t, record.Outcome.DepositConfirmation)

	balance, err := ledger.Balance("43-812")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(750)))

	recovered, err = svc.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, recovered)
}

func TestSubmit_ConflictingReferenceKeepsRecord(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	input := validInput()
	input.SessionID = "s-1"
	input.ReferenceID = "A"
	_, outcome, err := svc.Submit(ctx, input)
	require.NoError(t, err)
	require.Equal(t, domain.TransferStatusCompleted, outcome.Status)

	input.ReferenceID = "B"
	_, _, err = svc.Submit(ctx, input)
	assert.ErrorIs(t, err, domain.ErrInvalidTransfer)

	record, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "A", record.Request.ReferenceID)
	assert.Equal(t, domain.TransferStatusCompleted, record.Outcome.Status)

	sess, err := svc.Session(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "A", sess.Transfer.ReferenceID)
}
