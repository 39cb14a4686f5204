//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// setupPostgres starts a disposable PostgreSQL container with the transfers schema
func setupPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("transferflow"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	// Idempotent
	require.NoError(t, EnsureSchema(ctx, db))
	return db
}

func TestIntegration_TransferRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTransferRepository(setupPostgres(t))

	_, err := repo.GetBySessionID(ctx, "s-1")
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)

	created := time.Now().UTC().Truncate(time.Microsecond)
	record := &domain.TransferRecord{
		Request: domain.TransferRequest{
			SourceAccount: "85-150",
			TargetAccount: "43-812",
			Amount:        decimal.RequireFromString("250.50"),
			ReferenceID:   "12345",
			SessionID:     "s-1",
		},
		Outcome:   domain.TransferOutcome{Status: domain.TransferStatusPending},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, repo.Save(ctx, record))

	record.Outcome = domain.UnrecoverableFailure("refund failed: timeout", true)
	record.CreatedAt = created.Add(time.Hour)
	record.UpdatedAt = created.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, record))

	got, err := repo.GetBySessionID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusUnrecoverableFailure, got.Outcome.Status)
	assert.True(t, got.Outcome.RequiresRemediation)
	assert.Equal(t, "refund failed: timeout", got.Outcome.Reason)
	assert.True(t, got.Request.Amount.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, created.Equal(got.CreatedAt), "created_at is kept on conflict")
	assert.True(t, created.Add(time.Minute).Equal(got.UpdatedAt))

	second := *record
	second.Request.SessionID = "s-2"
	second.Outcome = domain.Completed("D-1")
	second.CreatedAt = created.Add(time.Second)
	require.NoError(t, repo.Save(ctx, &second))

	attempts, err := repo.ListByReferenceID(ctx, "12345")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "s-1", attempts[0].Request.SessionID)
	assert.Equal(t, "s-2", attempts[1].Request.SessionID)
	assert.Equal(t, "D-1", attempts[1].Outcome.DepositConfirmation)
}
