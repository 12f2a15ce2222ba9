// Package analytics serves the per-role dashboard counters.
package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/session"
)

type StatsStore interface {
	Admin(ctx context.Context) (*models.AdminStats, error)
	Contractor(ctx context.Context, uid uuid.UUID) (*models.ContractorStats, error)
	Homeowner(ctx context.Context, uid uuid.UUID) (*models.HomeownerStats, error)
}

type Handler struct {
	stats StatsStore
	log   *slog.Logger
}

func NewHandler(stats StatsStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{stats: stats, log: log}
}

// GET /api/v1/admin/analytics
func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r, models.RoleAdmin); !ok {
		return
	}
	s, err := h.stats.Admin(r.Context())
	if err != nil {
		h.log.Error("admin analytics failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

// GET /api/v1/contractor/analytics
func (h *Handler) Contractor(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.caller(w, r, models.RoleContractor)
	if !ok {
		return
	}
	s, err := h.stats.Contractor(r.Context(), sess.UID)
	if err != nil {
		h.log.Error("contractor analytics failed", "uid", sess.UID, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

// GET /api/v1/homeowner/analytics
func (h *Handler) Homeowner(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.caller(w, r, models.RoleHomeowner)
	if !ok {
		return
	}
	s, err := h.stats.Homeowner(r.Context(), sess.UID)
	if err != nil {
		h.log.Error("homeowner analytics failed", "uid", sess.UID, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request, role string) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	if sess.Role != role {
		httpx.Error(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return sess, true
}
