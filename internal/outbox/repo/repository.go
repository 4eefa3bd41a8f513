package repo

import (
	"context"
	"errors"

	"github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
)

var ErrNotFound = errors.New("outbox message not found")

// Repository stores notification outbox messages.
type Repository interface {
	// Create assigns a ksuid when m.ID is empty.
	Create(ctx context.Context, m *entity.Message) error
	// ListUnsent returns pending and sending messages with fewer than
	// maxAttempts attempts, oldest first.
	ListUnsent(ctx context.Context, maxAttempts, limit int) ([]*entity.Message, error)
	// Claim moves m to sending if its status and updatedAt are still the ones
	// read. It reports false when another attempt got there first.
	Claim(ctx context.Context, m *entity.Message, updatedAt string) (bool, error)
	// RecordAttempt bumps the attempt counter and sets the resulting status.
	RecordAttempt(ctx context.Context, id string, status entity.Status, lastErr, updatedAt string) error
}
