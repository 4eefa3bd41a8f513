package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MohamedNusaif/Loan-Management/internal/loan/entity"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

const (
	applicationsCollection = "loanApplications"
	paymentsCollection     = "loanPayments"
)

// applicationDoc is the stored shape; amounts are kept as decimal strings.
type applicationDoc struct {
	ID         string `bson:"_id"`
	UserID     string `bson:"userId"`
	Amount     string `bson:"amount"`
	TermMonths int    `bson:"termMonths"`
	Purpose    string `bson:"purpose"`
	Status     string `bson:"status"`
	DecidedBy  string `bson:"decidedBy,omitempty"`
	CreatedAt  string `bson:"createdAt"`
	UpdatedAt  string `bson:"updatedAt"`
}

func (d applicationDoc) toEntity() (*entity.Application, error) {
	amt, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("application %s amount: %w", d.ID, err)
	}
	return &entity.Application{
		ID:         d.ID,
		UserID:     d.UserID,
		Amount:     amt,
		TermMonths: d.TermMonths,
		Purpose:    d.Purpose,
		Status:     entity.ApplicationStatus(d.Status),
		DecidedBy:  d.DecidedBy,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

type paymentDoc struct {
	ID            string `bson:"_id"`
	UserID        string `bson:"userId"`
	ApplicationID string `bson:"applicationId"`
	Amount        string `bson:"amount"`
	Method        string `bson:"method"`
	CreatedAt     string `bson:"createdAt"`
}

type MongoRepo struct {
	apps     *mongo.Collection
	payments *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		apps:     db.Collection(applicationsCollection),
		payments: db.Collection(paymentsCollection),
	}
}

func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.apps.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return err
	}
	_, err := r.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (r *MongoRepo) CreateApplication(ctx context.Context, a *entity.Application) error {
	a.ID = utilities.NewSnowflakeID()
	doc := applicationDoc{
		ID:         a.ID,
		UserID:     a.UserID,
		Amount:     a.Amount.String(),
		TermMonths: a.TermMonths,
		Purpose:    a.Purpose,
		Status:     string(a.Status),
		DecidedBy:  a.DecidedBy,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if _, err := r.apps.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *MongoRepo) GetApplication(ctx context.Context, id string) (*entity.Application, error) {
	var doc applicationDoc
	if err := r.apps.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return doc.toEntity()
}

func (r *MongoRepo) ListApplications(ctx context.Context, f ApplicationFilter) ([]*entity.Application, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.apps.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	var docs []applicationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	out := make([]*entity.Application, 0, len(docs))
	for _, d := range docs {
		a, err := d.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MongoRepo) DecideApplication(ctx context.Context, id string, status entity.ApplicationStatus, decidedBy, updatedAt string) error {
	res, err := r.apps.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(entity.StatusNew)},
		bson.M{"$set": bson.M{"status": string(status), "decidedBy": decidedBy, "updatedAt": updatedAt}},
	)
	if err != nil {
		return fmt.Errorf("decide application: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetApplication(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *MongoRepo) CreatePayment(ctx context.Context, p *entity.Payment) error {
	p.ID = utilities.NewSnowflakeID()
	doc := paymentDoc{
		ID:            p.ID,
		UserID:        p.UserID,
		ApplicationID: p.ApplicationID,
		Amount:        p.Amount.String(),
		Method:        string(p.Method),
		CreatedAt:     p.CreatedAt,
	}
	if _, err := r.payments.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *MongoRepo) ListPayments(ctx context.Context, userID string, limit int) ([]*entity.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.payments.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	var docs []paymentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	out := make([]*entity.Payment, 0, len(docs))
	for _, d := range docs {
		amt, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("payment %s amount: %w", d.ID, err)
		}
		out = append(out, &entity.Payment{
			ID:            d.ID,
			UserID:        d.UserID,
			ApplicationID: d.ApplicationID,
			Amount:        amt,
			Method:        entity.PaymentMethod(d.Method),
			CreatedAt:     d.CreatedAt,
		})
	}
	return out, nil
}
