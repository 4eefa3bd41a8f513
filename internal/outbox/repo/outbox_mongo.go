package repo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

const outboxCollection = "notification_outbox"

// MongoRepo keys messages by ksuid strings, so _id sorts by creation time.
type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{coll: db.Collection(outboxCollection)}
}

func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "attempts", Value: 1}},
	})
	return err
}

func (r *MongoRepo) Create(ctx context.Context, m *entity.Message) error {
	if m.ID == "" {
		m.ID = utilities.NewKSUID()
	}
	if m.Status == "" {
		m.Status = entity.StatusPending
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (r *MongoRepo) ListUnsent(ctx context.Context, maxAttempts, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{
		"status":   bson.M{"$in": bson.A{entity.StatusPending, entity.StatusSending}},
		"attempts": bson.M{"$lt": maxAttempts},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list unsent outbox: %w", err)
	}
	var out []*entity.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode outbox: %w", err)
	}
	return out, nil
}

func (r *MongoRepo) Claim(ctx context.Context, m *entity.Message, updatedAt string) (bool, error) {
	filter := bson.M{"_id": m.ID, "status": m.Status, "updatedAt": m.UpdatedAt}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"status": entity.StatusSending, "updatedAt": updatedAt},
	})
	if err != nil {
		return false, fmt.Errorf("claim outbox message: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	m.Status, m.UpdatedAt = entity.StatusSending, updatedAt
	return true, nil
}

func (r *MongoRepo) RecordAttempt(ctx context.Context, id string, status entity.Status, lastErr, updatedAt string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"status": status, "lastError": lastErr, "updatedAt": updatedAt},
	})
	if err != nil {
		return fmt.Errorf("record outbox attempt: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
