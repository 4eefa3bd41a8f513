package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

const (
	LoginPath          = "/login"
	ChangePasswordPath = "/change-password"
)

type ctxKey struct{}

// FromContext returns the claims a gate attached to the request.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// WithClaims attaches claims to ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// Gate admits requests carrying a valid session for one of roles. An empty
// roles list admits any authenticated user. Sessions whose issued credential
// has not been rotated yet are refused with 403.
func (m *Manager) Gate(logger *zap.SugaredLogger, roles ...entity.Role) func(http.Handler) http.Handler {
	return m.gate(logger, true, roles)
}

// Authenticated is Gate without the rotation check, for the endpoints a
// user needs in order to rotate.
func (m *Manager) Authenticated(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return m.gate(logger, false, nil)
}

func (m *Manager) gate(logger *zap.SugaredLogger, enforceRotation bool, roles []entity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.FromRequest(r)
			if err != nil {
				logger.Debugw("session rejected", "path", r.URL.Path, "err", err)
				redirectToLogin(w, r, "authentication required")
				return
			}
			if !allowed(claims.Role, roles) {
				logger.Debugw("role not allowed", "path", r.URL.Path, "user_id", claims.Subject, "role", claims.Role)
				redirectToLogin(w, r, "forbidden")
				return
			}
			if enforceRotation && claims.RotationRequired {
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":    "credential rotation required",
					"redirect": ChangePasswordPath,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func allowed(role entity.Role, roles []entity.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// redirectToLogin sends browsers to the login page and answers API clients
// with 401 plus the redirect target.
func redirectToLogin(w http.ResponseWriter, r *http.Request, msg string) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg, "redirect": LoginPath})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
