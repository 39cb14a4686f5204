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

// SessionsCollection holds one document per saga execution attempt
const SessionsCollection = "sessions"

type sessionTransferDocument struct {
	SourceAccount string `bson:"source_account"`
	TargetAccount string `bson:"target_account"`
	Amount        string `bson:"amount"`
	ReferenceID   string `bson:"reference_id"`
}

type sessionDocument struct {
	SessionID string                   `bson:"session_id"`
	Transfer  *sessionTransferDocument `bson:"transfer,omitempty"`
	Withdraw  bool                     `bson:"withdraw"`
	Deposit   bool                     `bson:"deposit"`
	Refund    bool                     `bson:"refund"`
	CreatedAt time.Time                `bson:"created_at"`
	UpdatedAt time.Time                `bson:"updated_at"`
}

// SessionRepository implements domain.SessionRepository on a MongoDB collection
type SessionRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{
		collection: db.Collection(SessionsCollection),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique index on session_id
func (r *SessionRepository) EnsureIndexes(ctx context.Context, db *DB) error {
	return db.EnsureIndexes(ctx, SessionsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
}

// Create stores a new session record.
// The flags are only written on insert so a step marked before Create is never reset.
func (r *SessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	set := bson.M{"updated_at": record.UpdatedAt}
	if record.Transfer != nil {
		set["transfer"] = sessionTransferDocument{
			SourceAccount: record.Transfer.SourceAccount,
			TargetAccount: record.Transfer.TargetAccount,
			Amount:        record.Transfer.Amount.String(),
			ReferenceID:   record.Transfer.ReferenceID,
		}
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"session_id": record.SessionID,
			"created_at": record.CreatedAt,
		},
		"$max": bson.M{
			"withdraw": record.Withdraw,
			"deposit":  record.Deposit,
			"refund":   record.Refund,
		},
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"session_id": record.SessionID},
		update,
		options.Update().SetUpsert(true),
	)
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
	now := r.now()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$set":         bson.M{step.SessionField(): true, "updated_at": now},
			"$setOnInsert": bson.M{"session_id": sessionID, "created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s attempted for session %s: %w", step, sessionID, err)
	}
	return nil
}

// GetByID retrieves a session record
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	var doc sessionDocument
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return doc.toDomain()
}

func (d sessionDocument) toDomain() (*domain.SessionRecord, error) {
	record := &domain.SessionRecord{
		SessionID: d.SessionID,
		Withdraw:  d.Withdraw,
		Deposit:   d.Deposit,
		Refund:    d.Refund,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Transfer != nil {
		amount, err := decimal.NewFromString(d.Transfer.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount of session %s: %w", d.SessionID, err)
		}
		record.Transfer = &domain.SessionTransfer{
			SourceAccount: d.Transfer.SourceAccount,
			TargetAccount: d.Transfer.TargetAccount,
			Amount:        amount,
			ReferenceID:   d.Transfer.ReferenceID,
		}
	}
	return record, nil
}
