package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAccountStore is a mock implementation of AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) HasAccount(account string) bool {
	args := m.Called(account)
	return args.Bool(0)
}

func (m *MockAccountStore) OpenAccount(account string, balance decimal.Decimal) error {
	args := m.Called(account, balance)
	return args.Error(0)
}

func TestAccountSeeder_Seed_AccountsMissing(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockAccountStore)
	seeder := NewAccountSeeder(mockStore, DefaultAccounts(), nil)

	mockStore.On("HasAccount", DemoSourceAccount).Return(false)
	mockStore.On("HasAccount", DemoTargetAccount).Return(false)
	mockStore.On("OpenAccount", DemoSourceAccount, mock.MatchedBy(func(balance decimal.Decimal) bool {
		return balance.Equal(decimal.NewFromInt(2000))
	})).Return(nil)
	mockStore.On("OpenAccount", DemoTargetAccount, mock.MatchedBy(func(balance decimal.Decimal) bool {
		return balance.Equal(decimal.NewFromInt(500))
	})).Return(nil)

	err := seeder.Seed(ctx)

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockStore.AssertNumberOfCalls(t, "OpenAccount", 2)
}

func TestAccountSeeder_Seed_AccountsExist(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockAccountStore)
	seeder := NewAccountSeeder(mockStore, DefaultAccounts(), nil)

	mockStore.On("HasAccount", DemoSourceAccount).Return(true)
	mockStore.On("HasAccount", DemoTargetAccount).Return(true)

	err := seeder.Seed(ctx)

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
	// Existing balances are never reset
	mockStore.AssertNotCalled(t, "OpenAccount", mock.Anything, mock.Anything)
}

func TestAccountSeeder_Seed_PartialAccountsExist(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockAccountStore)
	seeder := NewAccountSeeder(mockStore, DefaultAccounts(), nil)

	mockStore.On("HasAccount", DemoSourceAccount).Return(true)
	mockStore.On("HasAccount", DemoTargetAccount).Return(false)
	mockStore.On("OpenAccount", DemoTargetAccount, mock.Anything).Return(nil)

	err := seeder.Seed(ctx)

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockStore.AssertNumberOfCalls(t, "OpenAccount", 1)
}

func TestAccountSeeder_Seed_OpenFails(t *testing.T) {
	ctx := context.Background()
	mockStore := new(MockAccountStore)
	seeder := NewAccountSeeder(mockStore, DefaultAccounts(), nil)

	mockStore.On("HasAccount", DemoSourceAccount).Return(false)
	mockStore.On("OpenAccount", DemoSourceAccount, mock.Anything).Return(errors.New("ledger closed"))

	err := seeder.Seed(ctx)

	assert.ErrorContains(t, err, "failed to seed account 85-150")
	mockStore.AssertNotCalled(t, "HasAccount", DemoTargetAccount)
}
