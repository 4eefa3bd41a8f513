package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

const outboxColumns = `id, user_id, email, first_name, status, attempts, last_error, created_at, updated_at`

type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Create(ctx context.Context, m *entity.Message) error {
	if m.ID == "" {
		m.ID = utilities.NewKSUID()
	}
	if m.Status == "" {
		m.Status = entity.StatusPending
	}
	const q = `INSERT INTO notification_outbox (` + outboxColumns + `)
		VALUES (:id, :user_id, :email, :first_name, :status, :attempts, :last_error, :created_at, :updated_at)`
	params := map[string]any{
		"id":         m.ID,
		"user_id":    m.UserID,
		"email":      m.Email,
		"first_name": m.FirstName,
		"status":     string(m.Status),
		"attempts":   m.Attempts,
		"last_error": m.LastError,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (r *SQLRepo) ListUnsent(ctx context.Context, maxAttempts, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.db.Rebind(`SELECT ` + outboxColumns + ` FROM notification_outbox
		WHERE status IN (?, ?) AND attempts < ? ORDER BY created_at, id LIMIT ?`)
	var rows []*entity.Message
	if err := r.db.SelectContext(ctx, &rows, q,
		string(entity.StatusPending), string(entity.StatusSending), maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("list unsent outbox: %w", err)
	}
	return rows, nil
}

func (r *SQLRepo) Claim(ctx context.Context, m *entity.Message, updatedAt string) (bool, error) {
	q := r.db.Rebind(`UPDATE notification_outbox SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND updated_at = ?`)
	res, err := r.db.ExecContext(ctx, q, string(entity.StatusSending), updatedAt, m.ID, string(m.Status), m.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("claim outbox message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim outbox message: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	m.Status, m.UpdatedAt = entity.StatusSending, updatedAt
	return true, nil
}

func (r *SQLRepo) RecordAttempt(ctx context.Context, id string, status entity.Status, lastErr, updatedAt string) error {
	q := r.db.Rebind(`UPDATE notification_outbox
		SET attempts = attempts + 1, status = ?, last_error = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, string(status), lastErr, updatedAt, id)
	if err != nil {
		return fmt.Errorf("record outbox attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
