package notify

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the notification endpoint.
type Handler struct {
	notifier Notifier
	apiKey   string
	logger   *zap.SugaredLogger
}

// NewHandler builds the endpoint. When apiKey is non-empty callers must send
// it in the X-Api-Key header.
func NewHandler(notifier Notifier, apiKey string, logger *zap.SugaredLogger) *Handler {
	return &Handler{notifier: notifier, apiKey: apiKey, logger: logger}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SendEmail handles POST {email, firstName, userId, password}.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	if h.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Api-Key")), []byte(h.apiKey)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid send-email payload", "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to send email", Details: "invalid payload"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to send email", Details: "email and password are required"})
		return
	}

	if err := h.notifier.NotifyCredentials(r.Context(), req); err != nil {
		details := "Unknown error"
		if errors.Is(err, ErrMailNotConfigured) {
			h.logger.Errorw("email send error", "err", err)
			details = ErrMailNotConfigured.Error()
		} else {
			h.logger.Warnw("email send error", "to", req.Email, "err", err)
			details = ErrDispatch.Error()
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to send email", Details: details})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
