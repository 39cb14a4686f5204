package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// CheckpointRepository implements domain.CheckpointRepository in process memory.
// Checkpoints do not survive a restart; use the mongo store when recovery matters.
type CheckpointRepository struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.SagaCheckpoint
}

// NewCheckpointRepository creates a new empty CheckpointRepository
func NewCheckpointRepository() *CheckpointRepository {
	return &CheckpointRepository{
		checkpoints: make(map[string]domain.SagaCheckpoint),
	}
}

// Save creates or replaces the checkpoint of a session
func (r *CheckpointRepository) Save(ctx context.Context, checkpoint domain.SagaCheckpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints[checkpoint.SessionID] = checkpoint
	return nil
}

// Load retrieves the checkpoint of a session
func (r *CheckpointRepository) Load(ctx context.Context, sessionID string) (domain.SagaCheckpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp, ok := r.checkpoints[sessionID]
	if !ok {
		return domain.SagaCheckpoint{}, domain.ErrCheckpointNotFound
	}
	return cp, nil
}

// ListPending retrieves every non-terminal checkpoint, oldest first
func (r *CheckpointRepository) ListPending(ctx context.Context) ([]domain.SagaCheckpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []domain.SagaCheckpoint
	for _, cp := range r.checkpoints {
		if !cp.State.IsTerminal() {
			pending = append(pending, cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}
