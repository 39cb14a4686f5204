// Package memory is an in-process banking ledger, used for demos and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

var _ domain.BankingService = (*Ledger)(nil)

// ErrInsufficientFunds is returned by Withdraw when the balance does not cover the amount.
// It is classified as a permanent account error.
var ErrInsufficientFunds = fmt.Errorf("insufficient funds: %w", domain.ErrInvalidAccount)

type operation struct {
	kind         string
	account      string
	amount       decimal.Decimal
	confirmation string
}

// Ledger holds account balances and applies each idempotency token at most once.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]decimal.Decimal
	applied  map[domain.StepToken]operation

	depositFaults int
	depositErr    error
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]decimal.Decimal),
		applied:  make(map[domain.StepToken]operation),
	}
}

// OpenAccount creates an account with the given balance, or resets the balance of an existing one
func (l *Ledger) OpenAccount(account string, balance decimal.Decimal) error {
	if account == "" {
		return errors.New("account number is required")
	}
	if balance.IsNegative() {
		return fmt.Errorf("opening balance of %s must not be negative", account)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[account] = balance
	return nil
}

// HasAccount reports whether the account exists
func (l *Ledger) HasAccount(account string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[account]
	return ok
}

// Balance returns the balance of an account
func (l *Ledger) Balance(account string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.accounts[account]
	if !ok {
		return decimal.Zero, fmt.Errorf("account %s: %w", account, domain.ErrInvalidAccount)
	}
	return balance, nil
}

// FailDeposits makes the next n deposits fail with err, without applying them.
// A negative n fails every deposit until FailDeposits(0, nil) is called.
func (l *Ledger) FailDeposits(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		err = domain.ErrTransient
	}
	l.depositFaults = n
	l.depositErr = err
}

// Applied returns the number of operations applied to the ledger
func (l *Ledger) Applied() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.applied)
}

// Withdraw debits account. A token already applied returns its original confirmation.
func (l *Ledger) Withdraw(ctx context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if confirmation, ok, err := l.replay("withdraw", account, amount, token); ok {
		return confirmation, err
	}

	balance, ok := l.accounts[account]
	if !ok {
		return "", fmt.Errorf("account %s: %w", account, domain.ErrInvalidAccount)
	}
	if balance.LessThan(amount) {
		return "", fmt.Errorf("account %s: %w", account, ErrInsufficientFunds)
	}

	l.accounts[account] = balance.Sub(amount)
	return l.record("withdraw", account, amount, token), nil
}

// Deposit credits account. A token already applied returns its original confirmation.
func (l *Ledger) Deposit(ctx context.Context, account string, amount decimal.Decimal, token domain.StepToken) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if confirmation, ok, err := l.replay("deposit", account, amount, token); ok {
		return confirmation, err
	}

	if l.depositFaults != 0 {
		if l.depositFaults > 0 {
			l.depositFaults--
		}
		return "", fmt.Errorf("deposit to %s: %w", account, l.depositErr)
	}

	balance, ok := l.accounts[account]
	if !ok {
		return "", fmt.Errorf("account %s: %w", account, domain.ErrInvalidAccount)
	}

	l.accounts[account] = balance.Add(amount)
	return l.record("deposit", account, amount, token), nil
}

// replay returns the confirmation of a token already applied.
// A token reused for a different operation is rejected.
func (l *Ledger) replay(kind, account string, amount decimal.Decimal, token domain.StepToken) (string, bool, error) {
	op, ok := l.applied[token]
	if !ok {
		return "", false, nil
	}
	if op.kind != kind || op.account != account || !op.amount.Equal(amount) {
		return "", true, fmt.Errorf("token %s already used for a different operation: %w", token, domain.ErrInvalidAccount)
	}
	return op.confirmation, true, nil
}

func (l *Ledger) record(kind, account string, amount decimal.Decimal, token domain.StepToken) string {
	confirmation := uuid.NewString()
	l.applied[token] = operation{
		kind:         kind,
		account:      account,
		amount:       amount,
		confirmation: confirmation,
	}
	return confirmation
}
