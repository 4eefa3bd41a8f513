package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
	"github.com/MohamedNusaif/Loan-Management/pkg/utilities"
)

const userColumns = `id, first_name, last_name, email, phone, address, nic_number, user_type,
	password_hash, must_reset_password, occupation, company, created_at, updated_at`

// SQLRepo provides data access for the users table using sqlx.
// Queries are written with '?' and rebound for the driver in use.
type SQLRepo struct {
	db *sqlx.DB
}

func NewSQLRepo(db *sqlx.DB) *SQLRepo { return &SQLRepo{db: db} }

// Create inserts a new user row. The identifier is a snowflake id.
func (r *SQLRepo) Create(ctx context.Context, u *entity.User) (string, error) {
	id := utilities.NewSnowflakeID()
	const q = `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :phone, :address, :nic_number, :user_type,
			:password_hash, :must_reset_password, :occupation, :company, :created_at, :updated_at)`
	params := map[string]any{
		"id":                  id,
		"first_name":          u.FirstName,
		"last_name":           u.LastName,
		"email":               u.Email,
		"phone":               u.Phone,
		"address":             u.Address,
		"nic_number":          u.NICNumber,
		"user_type":           string(u.UserType),
		"password_hash":       u.PasswordHash,
		"must_reset_password": u.MustResetPassword,
		"occupation":          nullable(u.Occupation),
		"company":             nullable(u.Company),
		"created_at":          u.CreatedAt,
		"updated_at":          u.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return id, nil
}

func (r *SQLRepo) FindByEmail(ctx context.Context, email string) ([]*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ? ORDER BY created_at, id`)
	var rows []*entity.User
	if err := r.db.SelectContext(ctx, &rows, q, email); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return rows, nil
}

func (r *SQLRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &row, nil
}

// UpdatePassword replaces the credential hash and the rotation flag.
func (r *SQLRepo) UpdatePassword(ctx context.Context, id, hash string, mustReset bool, updatedAt string) error {
	q := r.db.Rebind(`UPDATE users SET password_hash = ?, must_reset_password = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, hash, mustReset, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepo) ListByRole(ctx context.Context, role entity.Role, limit int) ([]*entity.User, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE user_type = ? ORDER BY created_at DESC LIMIT ?`)
	var rows []*entity.User
	if err := r.db.SelectContext(ctx, &rows, q, string(role), limit); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return rows, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
