package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/config"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

func TestOpenSQLite(t *testing.T) {
	v := viper.New()
	v.Set("APP_ENV", "development")
	v.Set("STORE_DRIVER", "sqlite")
	v.Set("DATABASE_URL", filepath.Join(t.TempDir(), "app.db"))
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := Open(ctx, cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	assert.Equal(t, "sqlite", s.Driver)
	require.NoError(t, s.Ping(ctx))

	id, err := s.Users.Create(ctx, &entity.User{Email: "a@b.co", UserType: entity.RoleAgent, CreatedAt: "t", UpdatedAt: "t"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Store: "redis"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
