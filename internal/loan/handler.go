package loan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MohamedNusaif/Loan-Management/internal/session"
	userentity "github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the loan endpoints, each behind the session gate for the
// roles allowed to use it.
func (h *Handler) Routes(sessions *session.Manager) chi.Router {
	users := sessions.Gate(h.logger, userentity.RoleUser)
	agents := sessions.Gate(h.logger, userentity.RoleAgent)
	anyone := sessions.Gate(h.logger)

	r := chi.NewRouter()
	r.With(users).Post("/applications", h.Submit)
	r.With(anyone).Get("/applications", h.ListApplications)
	r.With(agents).Post("/applications/{id}/decision", h.Decide)
	r.With(users).Post("/payments", h.Pay)
	r.With(users).Get("/payments", h.ListPayments)
	return r
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	var in ApplicationInput
	if !h.decode(w, r, &in) {
		return
	}
	app, err := h.svc.Submit(r.Context(), claims.Subject, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, app)
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	apps, err := h.svc.Applications(r.Context(), claims.User(), r.URL.Query().Get("status"), limitParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	var in DecisionInput
	if !h.decode(w, r, &in) {
		return
	}
	app, err := h.svc.Decide(r.Context(), claims.Subject, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, app)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	var in PaymentInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.svc.Pay(r.Context(), claims.Subject, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.FromContext(r.Context())
	ps, err := h.svc.Payments(r.Context(), claims.Subject, limitParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"payments": ps})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid loan payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please correct the highlighted fields", "fields": verr.Fields})
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrNotApproved):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Errorw("loan request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
