package step

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// MockBankingService is a mock implementation of BankingService for testing
type MockBankingService struct {
	mock.Mock
}

func (m *MockBankingService) Withdraw(ctx context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	args := m.Called(ctx, account, amount, token)
	return args.String(0), args.Error(1)
}

func (m *MockBankingService) Deposit(ctx context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	args := m.Called(ctx, account, amount, token)
	return args.String(0), args.Error(1)
}

// MockAttemptRecorder is a mock implementation of AttemptRecorder for testing
type MockAttemptRecorder struct {
	mock.Mock
}

func (m *MockAttemptRecorder) MarkAttempted(ctx context.Context, sessionID string, step domain.StepName) error {
	args := m.Called(ctx, sessionID, step)
	return args.Error(0)
}

// dedupLedger applies each token once and answers repeated tokens with the original confirmation
type dedupLedger struct {
	mu       sync.Mutex
	applied  map[domain.StepToken]string
	calls    int
	balances map[string]decimal.Decimal
}

func newDedupLedger() *dedupLedger {
	return &dedupLedger{
		applied:  make(map[domain.StepToken]string),
		balances: map[string]decimal.Decimal{"85-150": decimal.NewFromInt(1000)},
	}
}

func (l *dedupLedger) Withdraw(_ context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if conf, ok := l.applied[token]; ok {
		return conf, nil
	}
	l.balances[account] = l.balances[account].Sub(amount)
	conf := fmt.Sprintf("W-%d", len(l.applied)+1)
	l.applied[token] = conf
	return conf, nil
}

func (l *dedupLedger) Deposit(_ context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if conf, ok := l.applied[token]; ok {
		return conf, nil
	}
	l.balances[account] = l.balances[account].Add(amount)
	conf := fmt.Sprintf("D-%d", len(l.applied)+1)
	l.applied[token] = conf
	return conf, nil
}

func newStep(name domain.StepName, account string) domain.Step {
	return domain.Step{
		Name:      name,
		SessionID: "session-1",
		Account:   account,
		Amount:    decimal.NewFromInt(250),
		Token:     domain.DeriveToken("12345", name),
	}
}

func TestExecute_Withdrawal_RecordsAttemptBeforeLedgerCall(t *testing.T) {
	ctx := context.Background()
	bank := new(MockBankingService)
	recorder := new(MockAttemptRecorder)
	executor := NewExecutor(bank, recorder)

	var order []string
	recorder.On("MarkAttempted", mock.Anything, "session-1", domain.StepWithdrawal).
		Run(func(mock.Arguments) { order = append(order, "mark") }).
		Return(nil)
	bank.On("Withdraw", mock.Anything, "85-150", decimal.NewFromInt(250), domain.StepToken("12345-withdrawal")).
		Run(func(mock.Arguments) { order = append(order, "withdraw") }).
		Return("conf-w", nil)

	outcome := executor.Execute(ctx, newStep(domain.StepWithdrawal, "85-150"))

	assert.Equal(t, domain.OutcomeConfirmed, outcome.Kind)
	assert.Equal(t, "conf-w", outcome.ConfirmationID)
	assert.Equal(t, []string{"mark", "withdraw"}, order)
	bank.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestExecute_RefundIsADepositIntoTheGivenAccount(t *testing.T) {
	ctx := context.Background()
	bank := new(MockBankingService)
	recorder := new(MockAttemptRecorder)
	executor := NewExecutor(bank, recorder)

	recorder.On("MarkAttempted", mock.Anything, "session-1", domain.StepRefund).Return(nil)
	bank.On("Deposit", mock.Anything, "85-150", decimal.NewFromInt(250), domain.StepToken("12345-refund")).
		Return("conf-r", nil)

	outcome := executor.Execute(ctx, newStep(domain.StepRefund, "85-150"))

	assert.Equal(t, domain.OutcomeConfirmed, outcome.Kind)
	assert.Equal(t, "conf-r", outcome.ConfirmationID)
	bank.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_ClassifiesLedgerFailures(t *testing.T) {
	tests := []struct {
		name         string
		ledgerErr    error
		expectedKind domain.OutcomeKind
		expectedIs   error
	}{
		{
			name:         "Invalid account is permanent",
			ledgerErr:    fmt.Errorf("account 43-812: %w", domain.ErrInvalidAccount),
			expectedKind: domain.OutcomeInvalidAccount,
			expectedIs:   domain.ErrInvalidAccount,
		},
		{
			name:         "Network error is transient",
			ledgerErr:    errors.New("dial tcp: connection refused"),
			expectedKind: domain.OutcomeTransientFailure,
			expectedIs:   domain.ErrTransient,
		},
		{
			name:         "Context deadline is transient",
			ledgerErr:    context.DeadlineExceeded,
			expectedKind: domain.OutcomeTransientFailure,
			expectedIs:   context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := new(MockBankingService)
			recorder := new(MockAttemptRecorder)
			executor := NewExecutor(bank, recorder)

			recorder.On("MarkAttempted", mock.Anything, "session-1", domain.StepDeposit).Return(nil)
			bank.On("Deposit", mock.Anything, "43-812", decimal.NewFromInt(250), domain.StepToken("12345-deposit")).
				Return("", tt.ledgerErr)

			outcome := executor.Execute(context.Background(), newStep(domain.StepDeposit, "43-812"))

			assert.Equal(t, tt.expectedKind, outcome.Kind)
			assert.ErrorIs(t, outcome.Err, tt.expectedIs)
			assert.Empty(t, outcome.ConfirmationID)
		})
	}
}

func TestExecute_RecorderFailureDoesNotBlockLedgerCall(t *testing.T) {
	bank := new(MockBankingService)
	recorder := new(MockAttemptRecorder)
	executor := NewExecutor(bank, recorder)

	recorder.On("MarkAttempted", mock.Anything, "session-1", domain.StepWithdrawal).
		Return(errors.New("mongo unavailable"))
	bank.On("Withdraw", mock.Anything, "85-150", decimal.NewFromInt(250), domain.StepToken("12345-withdrawal")).
		Return("conf-w", nil)

	outcome := executor.Execute(context.Background(), newStep(domain.StepWithdrawal, "85-150"))

	assert.Equal(t, domain.OutcomeConfirmed, outcome.Kind)
	bank.AssertExpectations(t)
}

func TestExecute_UnknownStepIsPermanent(t *testing.T) {
	bank := new(MockBankingService)
	recorder := new(MockAttemptRecorder)
	executor := NewExecutor(bank, recorder)

	outcome := executor.Execute(context.Background(), newStep(domain.StepName("transfer"), "85-150"))

	assert.Equal(t, domain.OutcomeInvalidAccount, outcome.Kind)
	recorder.AssertNotCalled(t, "MarkAttempted", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_SameTokenTwiceIsANoOpOnTheLedger(t *testing.T) {
	ctx := context.Background()
	ledger := newDedupLedger()
	recorder := new(MockAttemptRecorder)
	recorder.On("MarkAttempted", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	executor := NewExecutor(ledger, recorder)

	first := executor.Execute(ctx, newStep(domain.StepWithdrawal, "85-150"))
	second := executor.Execute(ctx, newStep(domain.StepWithdrawal, "85-150"))

	require.Equal(t, domain.OutcomeConfirmed, first.Kind)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, ledger.calls)
	assert.True(t, ledger.balances["85-150"].Equal(decimal.NewFromInt(750)), "withdrawal applied once")
}

func TestExecute_RecordsSpan(t *testing.T) {
	recorderSpans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorderSpans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	bank := new(MockBankingService)
	recorder := new(MockAttemptRecorder)
	executor := NewExecutor(bank, recorder, WithTracer(provider.Tracer("test")))

	recorder.On("MarkAttempted", mock.Anything, "session-1", domain.StepDeposit).Return(nil)
	bank.On("Deposit", mock.Anything, "43-812", decimal.NewFromInt(250), domain.StepToken("12345-deposit")).
		Return("", fmt.Errorf("account 43-812: %w", domain.ErrInvalidAccount))

	executor.Execute(context.Background(), newStep(domain.StepDeposit, "43-812"))

	spans := recorderSpans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "transfer.deposit", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, string(domain.OutcomeInvalidAccount), spans[0].Status().Description)
}
