// Package dashboard serves the role-specific landing views.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	loanentity "github.com/MohamedNusaif/Loan-Management/internal/loan/entity"
	"github.com/MohamedNusaif/Loan-Management/internal/session"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

// Loans is what the dashboards read from the loan service.
type Loans interface {
	Applications(ctx context.Context, caller entity.PublicView, status string, limit int) ([]*loanentity.Application, error)
	Payments(ctx context.Context, userID string, limit int) ([]*loanentity.Payment, error)
}

// Users lists accounts for the agent view.
type Users interface {
	ListByRole(ctx context.Context, role entity.Role, limit int) ([]*entity.User, error)
}

type Handler struct {
	loans  Loans
	users  Users
	logger *zap.SugaredLogger
}

func NewHandler(loans Loans, users Users, logger *zap.SugaredLogger) *Handler {
	return &Handler{loans: loans, users: users, logger: logger}
}

type UserView struct {
	User         entity.PublicView         `json:"user"`
	Applications []*loanentity.Application `json:"applications"`
	Payments     []*loanentity.Payment     `json:"payments"`
}

type AgentView struct {
	User            entity.PublicView         `json:"user"`
	NewApplications []*loanentity.Application `json:"newApplications"`
	Customers       []entity.PublicView       `json:"customers"`
}

const listLimit = 50

// User renders the standard user's dashboard. Mount behind the user gate.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	me := claims.User()

	apps, err := h.loans.Applications(r.Context(), me, "", listLimit)
	if err != nil {
		h.fail(w, "applications", err)
		return
	}
	payments, err := h.loans.Payments(r.Context(), me.ID, listLimit)
	if err != nil {
		h.fail(w, "payments", err)
		return
	}
	writeJSON(w, http.StatusOK, UserView{
		User:         me,
		Applications: nonNil(apps),
		Payments:     nonNil(payments),
	})
}

// Agent renders the agent's queue. Mount behind the agent gate.
func (h *Handler) Agent(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	me := claims.User()

	queue, err := h.loans.Applications(r.Context(), me, string(loanentity.StatusNew), listLimit)
	if err != nil {
		h.fail(w, "applications", err)
		return
	}
	customers, err := h.users.ListByRole(r.Context(), entity.RoleUser, listLimit)
	if err != nil {
		h.fail(w, "customers", err)
		return
	}
	views := make([]entity.PublicView, 0, len(customers))
	for _, c := range customers {
		views = append(views, c.Public())
	}
	writeJSON(w, http.StatusOK, AgentView{
		User:            me,
		NewApplications: nonNil(queue),
		Customers:       views,
	})
}

func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	h.logger.Errorw("dashboard load failed", "part", what, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
