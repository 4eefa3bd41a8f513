package document

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/session"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type uploadRequest struct {
	FileName string `json:"fileName"`
}

// UploadURL must sit behind a session gate.
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	up, err := h.svc.PresignUpload(r.Context(), claims.Subject, req.FileName)
	switch {
	case err == nil:
		h.logger.Infow("upload url issued", "user_id", claims.Subject, "key", up.Key)
		writeJSON(w, http.StatusOK, up)
	case errors.Is(err, ErrInvalidFileName):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		h.logger.Errorw("presign failed", "user_id", claims.Subject, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
