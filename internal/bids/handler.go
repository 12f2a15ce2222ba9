package bids

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/session"
)

type StatusRequest struct {
	Status string `json:"status"`
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

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projectID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var sub Submission
	if err := httpx.DecodeJSON(r, &sub); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.svc.SubmitBid(r.Context(), sess.Actor(), projectID, sub)
	if err != nil {
		h.fail(w, "submit bid", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bidID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.svc.UpdateBidStatus(r.Context(), sess.Actor(), bidID, req.Status)
	if err != nil {
		h.fail(w, "update bid status", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) ListForProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projectID, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.svc.GetBidsForProject(r.Context(), sess.Actor(), projectID)
	if err != nil {
		h.fail(w, "list bids", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.GetContractorBids(r.Context(), sess.UID)
	if err != nil {
		h.fail(w, "list bids", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListReceived(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.GetHomeownerBids(r.Context(), sess.UID)
	if err != nil {
		h.fail(w, "list bids", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.Error(w, http.StatusBadRequest, httpx.FormatValidationError(verr.Err))
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrBidNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrProjectLocked):
		httpx.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDuplicateBid), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrProjectNotOpen):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrUnavailable):
		httpx.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.log.Error(op+" failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, op+" failed")
	}
}
