package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS transfers (
		session_id            TEXT PRIMARY KEY,
		reference_id          TEXT NOT NULL,
		source_account        TEXT NOT NULL,
		target_account        TEXT NOT NULL,
		amount                NUMERIC(20, 2) NOT NULL,
		status                TEXT NOT NULL,
		deposit_confirmation  TEXT NOT NULL DEFAULT '',
		refund_confirmation   TEXT NOT NULL DEFAULT '',
		reason                TEXT NOT NULL DEFAULT '',
		requires_remediation  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS transfers_reference_id_idx ON transfers (reference_id, created_at);
`

const transferColumns = `
	session_id, reference_id, source_account, target_account, amount,
	status, deposit_confirmation, refund_confirmation, reason, requires_remediation,
	created_at, updated_at
`

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// EnsureSchema creates the transfers table if it does not exist
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create transfers schema: %w", err)
	}
	return nil
}

// Save creates or updates the record of a transfer, keyed by session id
func (r *transferRepository) Save(ctx context.Context, record *domain.TransferRecord) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			deposit_confirmation = EXCLUDED.deposit_confirmation,
			refund_confirmation = EXCLUDED.refund_confirmation,
			reason = EXCLUDED.reason,
			requires_remediation = EXCLUDED.requires_remediation,
			updated_at = EXCLUDED.updated_at
	`

	req := record.Request
	out := record.Outcome
	_, err := r.db.ExecContext(ctx, query,
		req.SessionID,
		req.ReferenceID,
		req.SourceAccount,
		req.TargetAccount,
		req.Amount.String(),
		string(out.Status),
		out.DepositConfirmation,
		out.RefundConfirmation,
		out.Reason,
		out.RequiresRemediation,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transfer %s: %w", req.SessionID, err)
	}

	return nil
}

// GetBySessionID retrieves a transfer record
func (r *transferRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE session_id = $1`

	record, err := scanTransfer(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer %s: %w", sessionID, err)
	}

	return record, nil
}

// ListByReferenceID retrieves every attempt of a logical transfer, oldest first
func (r *transferRepository) ListByReferenceID(ctx context.Context, referenceID string) ([]*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE reference_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers of reference %s: %w", referenceID, err)
	}
	defer rows.Close()

	var records []*domain.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (*domain.TransferRecord, error) {
	var record domain.TransferRecord
	var amountStr, status string

	err := row.Scan(
		&record.Request.SessionID,
		&record.Request.ReferenceID,
		&record.Request.SourceAccount,
		&record.Request.TargetAccount,
		&amountStr,
		&status,
		&record.Outcome.DepositConfirmation,
		&record.Outcome.RefundConfirmation,
		&record.Outcome.Reason,
		&record.Outcome.RequiresRemediation,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse amount (NUMERIC)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	record.Request.Amount = amount
	record.Outcome.Status = domain.TransferStatus(status)

	return &record, nil
}
