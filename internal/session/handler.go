package session

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

// Handler serves the session read and logout endpoints.
type Handler struct {
	mgr    *Manager
	logger *zap.SugaredLogger
}

func NewHandler(mgr *Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{mgr: mgr, logger: logger}
}

type sessionResponse struct {
	User              entity.PublicView `json:"user"`
	MustResetPassword bool              `json:"mustResetPassword"`
	ExpiresAt         int64             `json:"expiresAt"`
}

// Current returns the user blob of the session. Mount behind Authenticated.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	claims, ok := FromContext(r.Context())
	if !ok {
		redirectToLogin(w, r, "authentication required")
		return
	}
	var exp int64
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		User:              claims.User(),
		MustResetPassword: claims.RotationRequired,
		ExpiresAt:         exp,
	})
}

// Logout clears the cookie. Tokens are stateless, so a copied bearer token
// stays valid until it expires.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.mgr.ClearCookie(w)
	if claims, err := h.mgr.FromRequest(r); err == nil {
		h.logger.Infow("logout", "user_id", claims.Subject)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": LoginPath})
}
