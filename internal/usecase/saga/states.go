// Transfer saga state machine definition.
// Tracks the lifecycle of one money transfer: withdraw, deposit, and the refund compensation.
package saga

import (
	"log/slog"
	"slices"

	"github.com/robbyt/go-fsm"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// Transitions defines the valid state transitions of a transfer saga
var Transitions = map[string][]string{
	// Forward flow
	string(domain.SagaStateStart):       {string(domain.SagaStateWithdrawing)},
	string(domain.SagaStateWithdrawing): {string(domain.SagaStateDepositing), string(domain.SagaStateUnrecoverableFailure)},
	string(domain.SagaStateDepositing):  {string(domain.SagaStateCompleted), string(domain.SagaStateRefunding)},

	// Compensation flow
	string(domain.SagaStateRefunding): {string(domain.SagaStateCompensatedFailure), string(domain.SagaStateUnrecoverableFailure)},

	// Terminal states
	string(domain.SagaStateCompleted):            {},
	string(domain.SagaStateCompensatedFailure):   {},
	string(domain.SagaStateUnrecoverableFailure): {},
}

// CanTransition reports whether the saga may move from one state to another
func CanTransition(from, to domain.SagaState) bool {
	allowed, ok := Transitions[string(from)]
	if !ok {
		return false
	}
	return slices.Contains(allowed, string(to))
}

// NewMachine creates a saga state machine positioned at the given state
func NewMachine(handler slog.Handler, current domain.SagaState) (*fsm.Machine, error) {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return fsm.New(handler, string(current), Transitions)
}
