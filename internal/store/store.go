// Package store opens the configured backend and exposes one repository per
// collection on top of it.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/config"
	loanrepo "github.com/MohamedNusaif/Loan-Management/internal/loan/repo"
	outboxrepo "github.com/MohamedNusaif/Loan-Management/internal/outbox/repo"
	userrepo "github.com/MohamedNusaif/Loan-Management/internal/user/repo"
	"github.com/MohamedNusaif/Loan-Management/pkg/database"
)

type Stores struct {
	Driver string
	Users  userrepo.Repository
	Outbox outboxrepo.Repository
	Loans  loanrepo.Repository

	sqlDB       *sqlx.DB
	mongoClient *mongo.Client
}

// Open connects to the backend named by cfg.Store. SQL backends are migrated
// to the latest schema; Mongo collections get their indexes.
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Stores, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		users := userrepo.NewMongoRepo(db)
		outbox := outboxrepo.NewMongoRepo(db)
		loans := loanrepo.NewMongoRepo(db)
		for name, ensure := range map[string]func(context.Context) error{
			"users":  users.EnsureIndexes,
			"outbox": outbox.EnsureIndexes,
			"loans":  loans.EnsureIndexes,
		} {
			if err := ensure(ctx); err != nil {
				logger.Warnw("ensure indexes failed", "collection", name, "err", err)
			}
		}
		return &Stores{Driver: cfg.Store, Users: users, Outbox: outbox, Loans: loans, mongoClient: client}, nil

	case config.StorePostgres, config.StoreSQLite:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, err
		}
		return FromSQL(db), nil
	}
	return nil, fmt.Errorf("store: unknown driver %q", cfg.Store)
}

// FromSQL wraps an already migrated SQL database.
func FromSQL(db *sqlx.DB) *Stores {
	return &Stores{
		Driver: db.DriverName(),
		Users:  userrepo.NewSQLRepo(db),
		Outbox: outboxrepo.NewSQLRepo(db),
		Loans:  loanrepo.NewSQLRepo(db),
		sqlDB:  db,
	}
}

func (s *Stores) Ping(ctx context.Context) error {
	if s.mongoClient != nil {
		return s.mongoClient.Ping(ctx, readpref.Primary())
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Stores) Close(ctx context.Context) error {
	if s.mongoClient != nil {
		return s.mongoClient.Disconnect(ctx)
	}
	return s.sqlDB.Close()
}
