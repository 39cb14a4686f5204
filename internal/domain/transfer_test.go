package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validRequest() TransferRequest {
	return TransferRequest{
		SourceAccount: "85-150",
		TargetAccount: "43-812",
		Amount:        decimal.NewFromInt(250),
		ReferenceID:   "12345",
		SessionID:     "aB3xY9",
	}
}

func TestTransferRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *TransferRequest)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "Valid request should pass",
			mutate:  func(r *TransferRequest) {},
			wantErr: false,
		},
		{
			name:    "Amount with cents should pass",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.RequireFromString("250.75") },
			wantErr: false,
		},
		{
			name:    "Zero amount should fail",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.Zero },
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name:    "Negative amount should fail",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.NewFromInt(-10) },
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name:    "Sub-cent amount should fail",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.RequireFromString("0.001") },
			wantErr: true,
			errMsg:  "decimal places",
		},
		{
			name:    "Same source and target should fail",
			mutate:  func(r *TransferRequest) { r.TargetAccount = r.SourceAccount },
			wantErr: true,
			errMsg:  "must differ from source_account",
		},
		{
			name:    "Missing source account should fail",
			mutate:  func(r *TransferRequest) { r.SourceAccount = "" },
			wantErr: true,
			errMsg:  "source_account",
		},
		{
			name:    "Missing reference id should fail",
			mutate:  func(r *TransferRequest) { r.ReferenceID = "" },
			wantErr: true,
			errMsg:  "reference_id",
		},
		{
			name:    "Missing session id should fail",
			mutate:  func(r *TransferRequest) { r.SessionID = "" },
			wantErr: true,
			errMsg:  "session_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransfer)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOutcomeConstructors(t *testing.T) {
	completed := Completed("conf-1")
	assert.Equal(t, TransferStatusCompleted, completed.Status)
	assert.Equal(t, "conf-1", completed.DepositConfirmation)
	assert.Empty(t, completed.RefundConfirmation)

	compensated := CompensatedFailure("refund-1", "invalid account")
	assert.Equal(t, TransferStatusCompensatedFailure, compensated.Status)
	assert.Equal(t, "refund-1", compensated.RefundConfirmation)
	assert.Equal(t, "invalid account", compensated.Reason)

	unrecoverable := UnrecoverableFailure("refund failed", true)
	assert.Equal(t, TransferStatusUnrecoverableFailure, unrecoverable.Status)
	assert.True(t, unrecoverable.RequiresRemediation)
}
