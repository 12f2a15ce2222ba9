package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/session"
)

type VerificationRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// GET /api/v1/admin/contractors?status=pending
func (h *Handler) ListContractors(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.ListContractors(r.Context(), sess.Actor(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, "list contractors", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// GET /api/v1/admin/users?role=homeowner
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.ListUsers(r.Context(), sess.Actor(), r.URL.Query().Get("role"))
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// POST /api/v1/admin/contractors/{uid}/verification
func (h *Handler) SetVerification(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	uid, err := httpx.PathUUID(r, "uid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req VerificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.SetVerification(r.Context(), sess.Actor(), uid, req.Status, req.AdminNotes)
	if err != nil {
		h.fail(w, "set verification", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidFilter):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrUnavailable):
		httpx.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.log.Error(op+" failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, op+" failed")
	}
}
