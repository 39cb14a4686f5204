package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/simaogato/transferflow-backend/internal/domain"
)

// CheckpointsCollection holds the durable state of every saga, keyed by session id
const CheckpointsCollection = "saga_checkpoints"

var terminalStates = bson.A{
	string(domain.SagaStateCompleted),
	string(domain.SagaStateCompensatedFailure),
	string(domain.SagaStateUnrecoverableFailure),
}

type checkpointDocument struct {
	SessionID     string    `bson:"session_id"`
	SourceAccount string    `bson:"source_account"`
	TargetAccount string    `bson:"target_account"`
	Amount        string    `bson:"amount"`
	ReferenceID   string    `bson:"reference_id"`
	State         string    `bson:"state"`
	Withdraw      string    `bson:"withdraw_confirmation,omitempty"`
	Deposit       string    `bson:"deposit_confirmation,omitempty"`
	Refund        string    `bson:"refund_confirmation,omitempty"`
	DepositFail   string    `bson:"deposit_failure,omitempty"`
	FailureReason string    `bson:"failure_reason,omitempty"`
	Uncertain     bool      `bson:"withdrawal_uncertain,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// CheckpointRepository implements domain.CheckpointRepository on a MongoDB collection
type CheckpointRepository struct {
	collection *mongo.Collection
}

// NewCheckpointRepository creates a new CheckpointRepository instance
func NewCheckpointRepository(db *DB) *CheckpointRepository {
	return &CheckpointRepository{collection: db.Collection(CheckpointsCollection)}
}

// EnsureIndexes creates the unique index on session_id and the index used by ListPending
func (r *CheckpointRepository) EnsureIndexes(ctx context.Context, db *DB) error {
	return db.EnsureIndexes(ctx, CheckpointsCollection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "state", Value: 1}, {Key: "created_at", Value: 1}},
		},
	)
}

// Save creates or replaces the checkpoint of a session
func (r *CheckpointRepository) Save(ctx context.Context, cp domain.SagaCheckpoint) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"session_id": cp.SessionID},
		newCheckpointDocument(cp),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", cp.SessionID, err)
	}
	return nil
}

// Load retrieves the checkpoint of a session
func (r *CheckpointRepository) Load(ctx context.Context, sessionID string) (domain.SagaCheckpoint, error) {
	var doc checkpointDocument
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.SagaCheckpoint{}, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return domain.SagaCheckpoint{}, fmt.Errorf("failed to load checkpoint %s: %w", sessionID, err)
	}
	return doc.toDomain()
}

// ListPending retrieves every non-terminal checkpoint, oldest first
func (r *CheckpointRepository) ListPending(ctx context.Context) ([]domain.SagaCheckpoint, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"state": bson.M{"$nin": terminalStates}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending checkpoints: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []checkpointDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pending checkpoints: %w", err)
	}

	checkpoints := make([]domain.SagaCheckpoint, 0, len(docs))
	for _, doc := range docs {
		cp, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}

func newCheckpointDocument(cp domain.SagaCheckpoint) checkpointDocument {
	return checkpointDocument{
		SessionID:     cp.SessionID,
		SourceAccount: cp.Request.SourceAccount,
		TargetAccount: cp.Request.TargetAccount,
		Amount:        cp.Request.Amount.String(),
		ReferenceID:   cp.Request.ReferenceID,
		State:         string(cp.State),
		Withdraw:      cp.WithdrawConfirmation,
		Deposit:       cp.DepositConfirmation,
		Refund:        cp.RefundConfirmation,
		DepositFail:   cp.DepositFailure,
		FailureReason: cp.FailureReason,
		Uncertain:     cp.WithdrawalUncertain,
		CreatedAt:     cp.CreatedAt,
		UpdatedAt:     cp.UpdatedAt,
	}
}

func (d checkpointDocument) toDomain() (domain.SagaCheckpoint, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return domain.SagaCheckpoint{}, fmt.Errorf("failed to parse amount of checkpoint %s: %w", d.SessionID, err)
	}
	return domain.SagaCheckpoint{
		SessionID: d.SessionID,
		Request: domain.TransferRequest{
			SourceAccount: d.SourceAccount,
			TargetAccount: d.TargetAccount,
			Amount:        amount,
			ReferenceID:   d.ReferenceID,
			SessionID:     d.SessionID,
		},
		State:                domain.SagaState(d.State),
		WithdrawConfirmation: d.Withdraw,
		DepositConfirmation:  d.Deposit,
		RefundConfirmation:   d.Refund,
		DepositFailure:       d.DepositFail,
		FailureReason:        d.FailureReason,
		WithdrawalUncertain:  d.Uncertain,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}, nil
}
