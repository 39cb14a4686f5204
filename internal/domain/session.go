package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionRecord records which saga steps were issued for one execution attempt.
// A flag is set when the step is issued, not when the ledger confirms it.
type SessionRecord struct {
	SessionID string
	Transfer  *SessionTransfer // Snapshot of the request, nil when the record was created by a flag upsert
	Withdraw  bool
	Deposit   bool
	Refund    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionTransfer is the transfer data stored alongside a session for audit
type SessionTransfer struct {
	SourceAccount string
	TargetAccount string
	Amount        decimal.Decimal
	ReferenceID   string
}

// NewSessionRecord creates a record with every flag unset
func NewSessionRecord(req TransferRequest, now time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID: req.SessionID,
		Transfer: &SessionTransfer{
			SourceAccount: req.SourceAccount,
			TargetAccount: req.TargetAccount,
			Amount:        req.Amount,
			ReferenceID:   req.ReferenceID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Attempted reports whether the given step was issued for this session
func (s *SessionRecord) Attempted(step StepName) bool {
	switch step {
	case StepWithdrawal:
		return s.Withdraw
	case StepDeposit:
		return s.Deposit
	case StepRefund:
		return s.Refund
	default:
		return false
	}
}

// MarkAttempted sets the flag of the given step
func (s *SessionRecord) MarkAttempted(step StepName, now time.Time) {
	switch step {
	case StepWithdrawal:
		s.Withdraw = true
	case StepDeposit:
		s.Deposit = true
	case StepRefund:
		s.Refund = true
	default:
		return
	}
	s.UpdatedAt = now
}
