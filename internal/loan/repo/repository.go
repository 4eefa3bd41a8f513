package repo

import (
	"context"
	"errors"

	"github.com/MohamedNusaif/Loan-Management/internal/loan/entity"
)

var (
	ErrNotFound = errors.New("loan record not found")
	// ErrConflict is returned when a decision targets an application that
	// is no longer new.
	ErrConflict = errors.New("application already decided")
)

// ApplicationFilter narrows ListApplications. Zero fields match everything.
type ApplicationFilter struct {
	UserID string
	Status entity.ApplicationStatus
	Limit  int
}

type Repository interface {
	CreateApplication(ctx context.Context, a *entity.Application) error
	GetApplication(ctx context.Context, id string) (*entity.Application, error)
	ListApplications(ctx context.Context, f ApplicationFilter) ([]*entity.Application, error)
	// DecideApplication moves a new application to status. It returns
	// ErrConflict if the application was decided in the meantime.
	DecideApplication(ctx context.Context, id string, status entity.ApplicationStatus, decidedBy, updatedAt string) error
	CreatePayment(ctx context.Context, p *entity.Payment) error
	ListPayments(ctx context.Context, userID string, limit int) ([]*entity.Payment, error)
}
