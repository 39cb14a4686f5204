package memory

import (
	"context"
	"sync"
	"time"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// SessionRepository implements domain.SessionRepository in process memory
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionRecord
	now      func() time.Time
}

// NewSessionRepository creates a new empty SessionRepository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*domain.SessionRecord),
		now:      time.Now,
	}
}

// Create stores a new session record. Flags already upserted for the same session are kept.
func (r *SessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copySession(record)
	if existing, ok := r.sessions[record.SessionID]; ok {
		stored.Withdraw = stored.Withdraw || existing.Withdraw
		stored.Deposit = stored.Deposit || existing.Deposit
		stored.Refund = stored.Refund || existing.Refund
		stored.CreatedAt = existing.CreatedAt
		if stored.Transfer == nil {
			stored.Transfer = existing.Transfer
		}
	}
	r.sessions[record.SessionID] = stored
	return nil
}

// MarkAttempted upserts the flag of the given step
func (r *SessionRepository) MarkAttempted(ctx context.Context, sessionID string, step domain.StepName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record, ok := r.sessions[sessionID]
	if !ok {
		record = &domain.SessionRecord{SessionID: sessionID, CreatedAt: now}
		r.sessions[sessionID] = record
	}
	record.MarkAttempted(step, now)
	return nil
}

// GetByID retrieves a copy of a session record
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(record), nil
}

func copySession(record *domain.SessionRecord) *domain.SessionRecord {
	c := *record
	if record.Transfer != nil {
		transfer := *record.Transfer
		c.Transfer = &transfer
	}
	return &c
}
