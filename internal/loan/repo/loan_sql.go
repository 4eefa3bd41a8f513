package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/MohamedNusaif/Loan-Management/internal/loan/entity"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

const (
	applicationColumns = `id, user_id, amount, term_months, purpose, status, decided_by, created_at, updated_at`
	paymentColumns     = `id, user_id, application_id, amount, method, created_at`
)

// SQLRepo stores amounts as decimal strings so no precision is lost on
// either driver.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) CreateApplication(ctx context.Context, a *entity.Application) error {
	a.ID = utilities.NewSnowflakeID()
	const q = `INSERT INTO loan_applications (` + applicationColumns + `)
		VALUES (:id, :user_id, :amount, :term_months, :purpose, :status, :decided_by, :created_at, :updated_at)`
	params := map[string]any{
		"id":          a.ID,
		"user_id":     a.UserID,
		"amount":      a.Amount.String(),
		"term_months": a.TermMonths,
		"purpose":     a.Purpose,
		"status":      string(a.Status),
		"decided_by":  a.DecidedBy,
		"created_at":  a.CreatedAt,
		"updated_at":  a.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetApplication(ctx context.Context, id string) (*entity.Application, error) {
	q := r.db.Rebind(`SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = ?`)
	var a entity.Application
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

func (r *SQLRepo) ListApplications(ctx context.Context, f ApplicationFilter) ([]*entity.Application, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + applicationColumns + ` FROM loan_applications`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []*entity.Application
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return rows, nil
}

func (r *SQLRepo) DecideApplication(ctx context.Context, id string, status entity.ApplicationStatus, decidedBy, updatedAt string) error {
	q := r.db.Rebind(`UPDATE loan_applications SET status = ?, decided_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, q, string(status), decidedBy, updatedAt, id, string(entity.StatusNew))
	if err != nil {
		return fmt.Errorf("decide application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetApplication(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *SQLRepo) CreatePayment(ctx context.Context, p *entity.Payment) error {
	p.ID = utilities.NewSnowflakeID()
	const q = `INSERT INTO loan_payments (` + paymentColumns + `)
		VALUES (:id, :user_id, :application_id, :amount, :method, :created_at)`
	params := map[string]any{
		"id":             p.ID,
		"user_id":        p.UserID,
		"application_id": p.ApplicationID,
		"amount":         p.Amount.String(),
		"method":         string(p.Method),
		"created_at":     p.CreatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *SQLRepo) ListPayments(ctx context.Context, userID string, limit int) ([]*entity.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.Rebind(`SELECT ` + paymentColumns + ` FROM loan_payments WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	var rows []*entity.Payment
	if err := r.db.SelectContext(ctx, &rows, q, userID, limit); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return rows, nil
}
