package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

func userDoc(id primitive.ObjectID, email string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "firstName", Value: "Jane"},
		{Key: "lastName", Value: "Doe"},
		{Key: "email", Value: email},
		{Key: "userType", Value: "user"},
		{Key: "passwordHash", Value: "hash"},
		{Key: "mustResetPassword", Value: true},
		{Key: "occupation", Value: "Engineer"},
		{Key: "createdAt", Value: "2026-01-01T00:00:00Z"},
	}
}

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create returns store id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewMongoRepo(mt.DB)

		u := newUser("jane@x.com", entity.RoleUser)
		id, err := repo.Create(context.Background(), u)
		require.NoError(mt, err)
		_, err = primitive.ObjectIDFromHex(id)
		assert.NoError(mt, err)
		assert.Equal(mt, id, u.ID)
	})

	mt.Run("create surfaces write errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "validation"}))
		repo := NewMongoRepo(mt.DB)

		_, err := repo.Create(context.Background(), newUser("jane@x.com", entity.RoleUser))
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "insert user")
	})

	mt.Run("find by email decodes hex ids", func(mt *mtest.T) {
		id1, id2 := primitive.NewObjectID(), primitive.NewObjectID()
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			userDoc(id1, "dup@x.com"), userDoc(id2, "dup@x.com")))
		repo := NewMongoRepo(mt.DB)

		users, err := repo.FindByEmail(context.Background(), "dup@x.com")
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.Equal(mt, id1.Hex(), users[0].ID)
		assert.Equal(mt, id2.Hex(), users[1].ID)
		assert.Equal(mt, entity.RoleUser, users[0].UserType)
		require.NotNil(mt, users[0].Occupation)
		assert.Nil(mt, users[0].Company)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewMongoRepo(mt.DB)

		_, err := repo.GetByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get by id rejects malformed ids", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.DB)
		_, err := repo.GetByID(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update password", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		repo := NewMongoRepo(mt.DB)
		err := repo.UpdatePassword(context.Background(), primitive.NewObjectID().Hex(), "h", false, "2026-02-01T00:00:00Z")
		assert.NoError(mt, err)
	})

	mt.Run("update password unmatched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		repo := NewMongoRepo(mt.DB)
		err := repo.UpdatePassword(context.Background(), primitive.NewObjectID().Hex(), "h", false, "2026-02-01T00:00:00Z")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
