package repo

import (
	"context"
	"errors"

	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("user not found")

// Repository is the persistence gateway for the users collection.
type Repository interface {
	// Create stores a new record and returns the identifier the store assigned.
	Create(ctx context.Context, u *entity.User) (string, error)
	// FindByEmail returns every record registered with email, oldest first.
	// Email is not unique, so more than one may come back.
	FindByEmail(ctx context.Context, email string) ([]*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdatePassword(ctx context.Context, id, hash string, mustReset bool, updatedAt string) error
	ListByRole(ctx context.Context, role entity.Role, limit int) ([]*entity.User, error)
}
