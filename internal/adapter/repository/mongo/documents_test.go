package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

func TestNewDB_Validation(t *testing.T) {
	_, err := NewDB(context.Background(), " ", "transferflow")
	assert.ErrorIs(t, err, ErrEmptyURI)

	_, err = NewDB(context.Background(), "mongodb://localhost:27017", "")
	assert.ErrorIs(t, err, ErrEmptyDatabaseName)
}

func TestCheckpointDocument_BSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cp := domain.NewSagaCheckpoint(domain.TransferRequest{
		SourceAccount: "85-150",
		TargetAccount: "43-812",
		Amount:        decimal.RequireFromString("250.75"),
		ReferenceID:   "12345",
		SessionID:     "s-1",
	}, now)
	cp.State = domain.SagaStateRefunding
	cp.WithdrawConfirmation = "W-1"
	cp.DepositFailure = "deposit failed: invalid account"

	raw, err := bson.Marshal(newCheckpointDocument(cp))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "refunding", fields["state"])
	assert.Equal(t, "250.75", fields["amount"])
	assert.NotContains(t, fields, "deposit_confirmation", "empty confirmations are omitted")

	var doc checkpointDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	decoded, err := doc.toDomain()
	require.NoError(t, err)

	assert.Equal(t, cp.Request.SourceAccount, decoded.Request.SourceAccount)
	assert.True(t, cp.Request.Amount.Equal(decoded.Request.Amount))
	assert.Equal(t, cp.Request.SessionID, decoded.Request.SessionID)
	assert.Equal(t, cp.State, decoded.State)
	assert.Equal(t, cp.WithdrawConfirmation, decoded.WithdrawConfirmation)
	assert.Equal(t, cp.DepositFailure, decoded.DepositFailure)
	assert.True(t, now.Equal(decoded.CreatedAt))
}

func TestCheckpointDocument_BadAmount(t *testing.T) {
	_, err := checkpointDocument{SessionID: "s-1", Amount: "abc"}.toDomain()
	assert.ErrorContains(t, err, "failed to parse amount")
}

func TestSessionDocument_ToDomain(t *testing.T) {
	doc := sessionDocument{SessionID: "s-1", Withdraw: true}
	record, err := doc.toDomain()
	require.NoError(t, err)
	assert.Nil(t, record.Transfer, "records created by a flag upsert carry no transfer")
	assert.True(t, record.Attempted(domain.StepWithdrawal))

	doc.Transfer = &sessionTransferDocument{ReferenceID: "12345", Amount: "10.5"}
	record, err = doc.toDomain()
	require.NoError(t, err)
	require.NotNil(t, record.Transfer)
	assert.True(t, record.Transfer.Amount.Equal(decimal.RequireFromString("10.5")))
}
