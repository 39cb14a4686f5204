// Package redis stores session records as Redis hashes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

const keyPrefix = "session:"

const (
	fieldSourceAccount = "source_account"
	fieldTargetAccount = "target_account"
	fieldAmount        = "amount"
	fieldReferenceID   = "reference_id"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"
)

// SessionRepository implements domain.SessionRepository with one hash per session.
// Every write refreshes the key TTL when one is configured.
type SessionRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionRepository creates a new SessionRepository instance. A zero ttl keeps sessions forever.
func NewSessionRepository(client redis.UniversalClient, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Create stores a new session record. Flags already set for the session are kept.
func (r *SessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	k := key(record.SessionID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, k, fieldCreatedAt, formatTime(record.CreatedAt))
		for _, step := range []domain.StepName{domain.StepWithdrawal, domain.StepDeposit, domain.StepRefund} {
			if record.Attempted(step) {
				pipe.HSet(ctx, k, step.SessionField(), "1")
			} else {
				pipe.HSetNX(ctx, k, step.SessionField(), "0")
			}
		}

		values := []any{fieldUpdatedAt, formatTime(record.UpdatedAt)}
		if t := record.Transfer; t != nil {
			values = append(values,
				fieldSourceAccount, t.SourceAccount,
				fieldTargetAccount, t.TargetAccount,
				fieldAmount, t.Amount.String(),
				fieldReferenceID, t.ReferenceID,
			)
		}
		pipe.HSet(ctx, k, values...)
		r.expire(ctx, pipe, k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", record.SessionID, err)
	}
	return nil
}

// MarkAttempted upserts the flag of the given step to true
func (r *SessionRepository) MarkAttempted(ctx context.Context, sessionID string, step domain.StepName) error {
	if !step.IsValid() {
		return fmt.Errorf("unknown step %q", step)
	}
	k := key(sessionID)
	now := formatTime(r.now())

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, k, fieldCreatedAt, now)
		pipe.HSet(ctx, k, step.SessionField(), "1", fieldUpdatedAt, now)
		r.expire(ctx, pipe, k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s attempted for session %s: %w", step, sessionID, err)
	}
	return nil
}

// GetByID retrieves a session record
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	fields, err := r.client.HGetAll(ctx, key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	record := &domain.SessionRecord{
		SessionID: sessionID,
		Withdraw:  fields[domain.StepWithdrawal.SessionField()] == "1",
		Deposit:   fields[domain.StepDeposit.SessionField()] == "1",
		Refund:    fields[domain.StepRefund.SessionField()] == "1",
	}
	if record.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if record.UpdatedAt, err = parseTime(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	if ref, ok := fields[fieldReferenceID]; ok {
		amount, err := decimal.NewFromString(fields[fieldAmount])
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount of session %s: %w", sessionID, err)
		}
		record.Transfer = &domain.SessionTransfer{
			SourceAccount: fields[fieldSourceAccount],
			TargetAccount: fields[fieldTargetAccount],
			Amount:        amount,
			ReferenceID:   ref,
		}
	}
	return record, nil
}

func (r *SessionRepository) expire(ctx context.Context, pipe redis.Pipeliner, k string) {
	if r.ttl > 0 {
		pipe.Expire(ctx, k, r.ttl)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t, nil
}
