package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/session"
	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

// Handler exposes HTTP endpoints for registration, login and credential
// rotation.
type Handler struct {
	svc      *UserService
	sessions *session.Manager
	logger   *zap.SugaredLogger
}

func NewHandler(svc *UserService, sessions *session.Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RedirectAfterMs is how long the client shows the success message before
// moving to the login page.
const RedirectAfterMs = 3000

type RegisterResponse struct {
	Success         bool   `json:"success"`
	ID              string `json:"id"`
	Redirect        string `json:"redirect"`
	RedirectAfterMs int    `json:"redirectAfterMs"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	id, err := h.svc.Register(r.Context(), req)
	var verr *ValidationError
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, RegisterResponse{
			Success:         true,
			ID:              id,
			Redirect:        session.LoginPath,
			RedirectAfterMs: RedirectAfterMs,
		})
	case errors.As(err, &verr):
		h.logger.Debugw("register validation failed", "fields", verr.Fields)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please correct the highlighted fields", "fields": verr.Fields})
	case errors.Is(err, ErrNotifyFailed):
		h.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Account created but the credentials email could not be sent. It will be retried shortly.",
			"id":    id,
		})
	default:
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create user. Please try again."})
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the public view plus the rotation flag.
type LoginResponse struct {
	entity.PublicView
	MustResetPassword bool `json:"mustResetPassword"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
		return
	}
	u, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
		case errors.Is(err, ErrBadCredentials):
			// same answer for unknown email and wrong credential
			h.logger.Debugw("login failed", "err", err)
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
		default:
			h.logger.Errorw("login error", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		return
	}
	if err := h.sessions.Start(w, u); err != nil {
		h.logger.Errorw("issue session failed", "user_id", u.ID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	h.logger.Infow("login", "user_id", u.ID, "user_type", u.UserType)
	h.writeJSON(w, http.StatusOK, LoginResponse{PublicView: u.Public(), MustResetPassword: u.MustResetPassword})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the credential of the session user and reissues the
// session without the rotation flag. Mount behind session.Authenticated.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required", "redirect": session.LoginPath})
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.RotatePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrWeakPassword):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Current password is incorrect"})
		default:
			h.logger.Errorw("rotate password failed", "user_id", claims.Subject, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		return
	}
	if err := h.sessions.Start(w, u); err != nil {
		h.logger.Errorw("reissue session failed", "user_id", u.ID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": dashboardPath(u.UserType)})
}

func dashboardPath(role entity.Role) string {
	if role == entity.RoleAgent {
		return "/dashboard/agent"
	}
	return "/dashboard/user"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
