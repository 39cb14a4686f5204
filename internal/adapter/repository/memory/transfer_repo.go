package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// TransferRepository implements domain.TransferRepository in process memory
type TransferRepository struct {
	mu        sync.RWMutex
	transfers map[string]domain.TransferRecord
}

// NewTransferRepository creates a new empty TransferRepository
func NewTransferRepository() *TransferRepository {
	return &TransferRepository{
		transfers: make(map[string]domain.TransferRecord),
	}
}

// Save creates or updates the record of a transfer. CreatedAt of an existing record is kept.
func (r *TransferRepository) Save(ctx context.Context, record *domain.TransferRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	if existing, ok := r.transfers[record.Request.SessionID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.transfers[record.Request.SessionID] = stored
	return nil
}

// GetBySessionID retrieves a transfer record
func (r *TransferRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.transfers[sessionID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return &record, nil
}

// ListByReferenceID retrieves every attempt of a logical transfer, oldest first
func (r *TransferRepository) ListByReferenceID(ctx context.Context, referenceID string) ([]*domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*domain.TransferRecord
	for _, record := range r.transfers {
		if record.Request.ReferenceID == referenceID {
			rec := record
			records = append(records, &rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
