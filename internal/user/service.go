package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/credential"
	"github.com/MohamedNusaif/Loan-Management/internal/notify"
	outboxentity "github.com/MohamedNusaif/Loan-Management/internal/outbox/entity"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
	userrepo "github.com/MohamedNusaif/Loan-Management/internal/user/repo"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrBadCredentials     = errors.New("invalid credentials")
	ErrCreateFailed       = errors.New("failed to create user")
	ErrNotifyFailed       = errors.New("failed to deliver credentials")
	ErrWeakPassword       = errors.New("new password must be at least 8 characters")
)

// MinPasswordLength applies to rotated credentials.
const MinPasswordLength = 8

// Outbox is the part of the outbox store registration writes to.
type Outbox interface {
	Create(ctx context.Context, m *outboxentity.Message) error
	RecordAttempt(ctx context.Context, id string, status outboxentity.Status, lastErr, updatedAt string) error
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,basic_email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	NICNumber  string `json:"nicNumber" validate:"required"`
	UserType   string `json:"userType" validate:"oneof=user agent"`
	Occupation string `json:"occupation" validate:"required_if=UserType user"`
	Company    string `json:"company" validate:"required_if=UserType user"`
}

func (in *RegisterInput) normalize() {
	for _, f := range []*string{&in.FirstName, &in.LastName, &in.Email, &in.Phone, &in.Address,
		&in.NICNumber, &in.UserType, &in.Occupation, &in.Company} {
		*f = strings.TrimSpace(*f)
	}
	if in.UserType == "" {
		in.UserType = string(entity.RoleUser)
	}
}

// UserService runs the registration, login and credential rotation flows.
type UserService struct {
	users    userrepo.Repository
	outbox   Outbox
	notifier notify.Notifier
	hasher   credential.Hasher
	validate *validator.Validate
	logger   *zap.SugaredLogger

	generate func() (string, error)
	now      func() time.Time
}

func NewUserService(users userrepo.Repository, outbox Outbox, notifier notify.Notifier, hasher credential.Hasher, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = credential.BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{
		users:    users,
		outbox:   outbox,
		notifier: notifier,
		hasher:   hasher,
		validate: newValidator(),
		logger:   logger,
		generate: credential.Generate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) stamp() string { return s.now().Format(entity.TimeLayout) }

// Validate checks a registration form without touching any store.
func (s *UserService) Validate(in *RegisterInput) error {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return toValidationError(err)
	}
	return nil
}

// Register creates the account and delivers its credential. When delivery
// fails the account is kept and the returned id is still valid; the error
// wraps ErrNotifyFailed and the outbox message is left pending for the relay.
// The message is held as sending until this first attempt settles, so the
// relay cannot rotate the credential while it is being delivered.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := s.Validate(&in); err != nil {
		return "", err
	}

	pw, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	now := s.stamp()
	u := &entity.User{
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Email:             in.Email,
		Phone:             in.Phone,
		Address:           in.Address,
		NICNumber:         in.NICNumber,
		UserType:          entity.Role(in.UserType),
		PasswordHash:      hash,
		MustResetPassword: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if u.UserType == entity.RoleUser {
		u.Occupation = &in.Occupation
		u.Company = &in.Company
	}

	id, err := s.users.Create(ctx, u)
	if err != nil {
		s.logger.Errorw("create user failed", "email", u.Email, "err", err)
		return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	s.logger.Infow("user registered", "user_id", id, "user_type", u.UserType)

	msg := &outboxentity.Message{
		UserID:    id,
		Email:     u.Email,
		FirstName: u.FirstName,
		Status:    outboxentity.StatusSending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.outbox != nil {
		if err := s.outbox.Create(ctx, msg); err != nil {
			s.logger.Warnw("outbox record failed", "user_id", id, "err", err)
			msg = nil
		}
	}

	sendErr := s.notifier.NotifyCredentials(ctx, notify.Credentials{
		Email:     u.Email,
		FirstName: u.FirstName,
		UserID:    id,
		Password:  pw,
	})
	s.recordAttempt(ctx, msg, sendErr)
	if sendErr != nil {
		s.logger.Warnw("credentials delivery failed", "user_id", id, "err", sendErr)
		return id, fmt.Errorf("%w: %v", ErrNotifyFailed, sendErr)
	}
	return id, nil
}

func (s *UserService) recordAttempt(ctx context.Context, msg *outboxentity.Message, sendErr error) {
	if s.outbox == nil || msg == nil {
		return
	}
	status, lastErr := outboxentity.StatusSent, ""
	if sendErr != nil {
		status, lastErr = outboxentity.StatusPending, sendErr.Error()
	}
	if err := s.outbox.RecordAttempt(ctx, msg.ID, status, lastErr, s.stamp()); err != nil {
		s.logger.Warnw("outbox update failed", "id", msg.ID, "err", err)
	}
}

type burner interface{ Burn(pw string) }

// Authenticate returns the account registered under email whose credential
// matches. Unknown email and wrong credential both yield ErrBadCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	candidates, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	for _, u := range candidates {
		if s.hasher.Verify(u.PasswordHash, password) {
			return u, nil
		}
	}
	if len(candidates) == 0 {
		if b, ok := s.hasher.(burner); ok {
			b.Burn(password)
		}
	}
	return nil, ErrBadCredentials
}

// RotatePassword replaces the credential of id and clears the rotation flag.
func (s *UserService) RotatePassword(ctx context.Context, id, current, next string) (*entity.User, error) {
	if len(next) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, current) {
		return nil, ErrBadCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return nil, err
	}
	now := s.stamp()
	if err := s.users.UpdatePassword(ctx, id, hash, false, now); err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	u.MustResetPassword = false
	u.UpdatedAt = now
	s.logger.Infow("credential rotated", "user_id", id)
	return u, nil
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListByRole lists accounts of one role, newest first.
func (s *UserService) ListByRole(ctx context.Context, role entity.Role, limit int) ([]*entity.User, error) {
	return s.users.ListByRole(ctx, role, limit)
}
