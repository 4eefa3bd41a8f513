// Package loan handles loan applications and repayments submitted from the
// dashboards.
package loan

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/loan/entity"
	loanrepo "github.com/MohamedNusaif/Loan-Management/internal/loan/repo"
	userentity "github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

var (
	ErrNotFound       = errors.New("application not found")
	ErrAlreadyDecided = errors.New("application already decided")
	ErrNotApproved    = errors.New("application is not approved")
)

// ValidationError maps JSON field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid loan request: " + strings.Join(keys, ", ")
}

type ApplicationInput struct {
	Amount     decimal.Decimal `json:"amount"`
	TermMonths int             `json:"termMonths" validate:"oneof=6 12 24 36"`
	Purpose    string          `json:"purpose" validate:"required"`
}

type PaymentInput struct {
	ApplicationID string          `json:"applicationId" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" validate:"oneof=card bank_transfer"`
}

type DecisionInput struct {
	Status string `json:"status" validate:"oneof=approved rejected"`
}

var messages = map[string]string{
	"termMonths":    "Term must be 6, 12, 24 or 36 months",
	"purpose":       "Purpose is required",
	"applicationId": "Application is required",
	"method":        "Payment method must be card or bank_transfer",
	"status":        "Status must be approved or rejected",
}

type Service struct {
	repo     loanrepo.Repository
	validate *validator.Validate
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(repo loanrepo.Repository, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &Service{
		repo:     repo,
		validate: v,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) stamp() string { return s.now().Format(userentity.TimeLayout) }

// check validates in. amount must already be rounded to cents.
func (s *Service) check(in any, amount *decimal.Decimal) error {
	fields := map[string]string{}
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = messages[fe.Field()]
		}
	}
	if amount != nil && !amount.IsPositive() {
		fields["amount"] = "Amount must be greater than zero"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit records a new application for userID.
func (s *Service) Submit(ctx context.Context, userID string, in ApplicationInput) (*entity.Application, error) {
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.Amount = in.Amount.Round(2)
	if err := s.check(&in, &in.Amount); err != nil {
		return nil, err
	}
	now := s.stamp()
	a := &entity.Application{
		UserID:     userID,
		Amount:     in.Amount,
		TermMonths: in.TermMonths,
		Purpose:    in.Purpose,
		Status:     entity.StatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateApplication(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Infow("loan application submitted", "id", a.ID, "user_id", userID, "amount", a.Amount.String(), "term", a.TermMonths)
	return a, nil
}

// Applications lists what the caller may see: users get their own, agents
// get everything, optionally narrowed by status.
func (s *Service) Applications(ctx context.Context, caller userentity.PublicView, status string, limit int) ([]*entity.Application, error) {
	f := loanrepo.ApplicationFilter{Limit: limit}
	if caller.UserType != userentity.RoleAgent {
		f.UserID = caller.ID
	}
	if status != "" {
		st := entity.ApplicationStatus(status)
		if !st.Valid() {
			return nil, &ValidationError{Fields: map[string]string{"status": "Unknown status"}}
		}
		f.Status = st
	}
	return s.repo.ListApplications(ctx, f)
}

// Decide approves or rejects a new application.
func (s *Service) Decide(ctx context.Context, agentID, id string, in DecisionInput) (*entity.Application, error) {
	if err := s.check(&in, nil); err != nil {
		return nil, err
	}
	status := entity.ApplicationStatus(in.Status)
	now := s.stamp()
	if err := s.repo.DecideApplication(ctx, id, status, agentID, now); err != nil {
		switch {
		case errors.Is(err, loanrepo.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, loanrepo.ErrConflict):
			return nil, ErrAlreadyDecided
		}
		return nil, err
	}
	s.logger.Infow("loan application decided", "id", id, "status", status, "agent_id", agentID)
	return s.repo.GetApplication(ctx, id)
}

// Pay records a repayment against one of userID's approved applications.
func (s *Service) Pay(ctx context.Context, userID string, in PaymentInput) (*entity.Payment, error) {
	in.ApplicationID = strings.TrimSpace(in.ApplicationID)
	in.Amount = in.Amount.Round(2)
	if err := s.check(&in, &in.Amount); err != nil {
		return nil, err
	}
	app, err := s.repo.GetApplication(ctx, in.ApplicationID)
	if err != nil {
		if errors.Is(err, loanrepo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if app.UserID != userID {
		return nil, ErrNotFound
	}
	if app.Status != entity.StatusApproved {
		return nil, ErrNotApproved
	}
	p := &entity.Payment{
		UserID:        userID,
		ApplicationID: app.ID,
		Amount:        in.Amount,
		Method:        entity.PaymentMethod(in.Method),
		CreatedAt:     s.stamp(),
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	s.logger.Infow("payment recorded", "id", p.ID, "application_id", app.ID, "amount", p.Amount.String(), "method", p.Method)
	return p, nil
}

func (s *Service) Payments(ctx context.Context, userID string, limit int) ([]*entity.Payment, error) {
	return s.repo.ListPayments(ctx, userID, limit)
}
