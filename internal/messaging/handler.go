package messaging

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/session"
)

type OpenRequest struct {
	ProjectID     uuid.UUID `json:"projectId"`
	ContractorUID uuid.UUID `json:"contractorUid"`
}

type SendRequest struct {
	Content string `json:"content"`
}

type ReadResponse struct {
	Marked int64 `json:"marked"`
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

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req OpenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProjectID == uuid.Nil {
		httpx.Error(w, http.StatusBadRequest, "projectId is required")
		return
	}
	conv, err := h.svc.GetOrCreateConversation(r.Context(), sess.Actor(), req.ContractorUID, req.ProjectID)
	if err != nil {
		h.fail(w, "open conversation", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, conv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.ListConversations(r.Context(), sess.Actor())
	if err != nil {
		h.fail(w, "list conversations", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.ListMessages(r.Context(), sess.Actor(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "list messages", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req SendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.svc.SendMessage(r.Context(), sess.Actor(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		h.fail(w, "send message", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.MarkMessagesAsRead(r.Context(), sess.Actor(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "mark read", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ReadResponse{Marked: n})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidContent):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrProjectNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrProjectLocked):
		httpx.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrUnavailable):
		httpx.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.log.Error(op+" failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, op+" failed")
	}
}
