package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Demo accounts used by the submit command defaults
const (
	DemoSourceAccount = "85-150"
	DemoTargetAccount = "43-812"
)

// DemoAccount defines an account to be seeded with its opening balance
type DemoAccount struct {
	Number  string
	Balance decimal.Decimal
}

// DefaultAccounts returns the accounts seeded at startup
func DefaultAccounts() []DemoAccount {
	return []DemoAccount{
		{Number: DemoSourceAccount, Balance: decimal.NewFromInt(2000)},
		{Number: DemoTargetAccount, Balance: decimal.NewFromInt(500)},
	}
}

// AccountStore is the part of a ledger the seeder writes to
type AccountStore interface {
	HasAccount(account string) bool
	OpenAccount(account string, balance decimal.Decimal) error
}

// AccountSeeder handles seeding of the demo ledger accounts
type AccountSeeder struct {
	store    AccountStore
	accounts []DemoAccount
	logger   *slog.Logger
}

// NewAccountSeeder creates a new AccountSeeder instance
func NewAccountSeeder(store AccountStore, accounts []DemoAccount, logger *slog.Logger) *AccountSeeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountSeeder{
		store:    store,
		accounts: accounts,
		logger:   logger.WithGroup("seeder"),
	}
}

// Seed ensures every demo account exists in the ledger.
// Existing accounts keep their balance.
func (s *AccountSeeder) Seed(ctx context.Context) error {
	for _, account := range s.accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.store.HasAccount(account.Number) {
			continue
		}
		if err := s.store.OpenAccount(account.Number, account.Balance); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", account.Number, err)
		}
		s.logger.Info("Seeded account", "account", account.Number, "balance", account.Balance.String())
	}

	return nil
}
