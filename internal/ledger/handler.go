package ledger

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/session"
)

type PurchaseRequest struct {
	PackageID string `json:"packageId"`
}

type RefundRequest struct {
	ContractorUID uuid.UUID `json:"contractorUid"`
	ProjectID     uuid.UUID `json:"projectId"`
	Reason        string    `json:"reason"`
}

type CreditsResponse struct {
	Balance      int                         `json:"balance"`
	Transactions []*models.CreditTransaction `json:"transactions"`
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

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
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
	receipt, err := h.svc.Unlock(r.Context(), sess.UID, projectID)
	if err != nil {
		h.fail(w, "unlock project", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) ListUnlocks(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.GetContractorUnlocks(r.Context(), sess.UID)
	if err != nil {
		h.fail(w, "list unlocks", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Credits(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	balance, err := h.svc.Balance(r.Context(), sess.UID)
	if err != nil {
		h.fail(w, "load balance", err)
		return
	}
	history, err := h.svc.History(r.Context(), sess.UID)
	if err != nil {
		h.fail(w, "load history", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, CreditsResponse{Balance: balance, Transactions: history})
}

func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, models.CreditPackages)
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req PurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PackageID == "" {
		httpx.Error(w, http.StatusBadRequest, "packageId is required")
		return
	}
	receipt, err := h.svc.BuyCredits(r.Context(), sess.UID, req.PackageID)
	if err != nil {
		h.fail(w, "buy credits", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) PrivateDetails(w http.ResponseWriter, r *http.Request) {
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
	d, err := h.svc.PrivateDetailsFor(r.Context(), sess.Actor(), projectID)
	if err != nil {
		h.fail(w, "load private details", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req RefundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ContractorUID == uuid.Nil || req.ProjectID == uuid.Nil {
		httpx.Error(w, http.StatusBadRequest, "contractorUid and projectId are required")
		return
	}
	receipt, err := h.svc.RefundUnlock(r.Context(), sess.Actor(), req.ContractorUID, req.ProjectID, req.Reason)
	if err != nil {
		h.fail(w, "refund unlock", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	uid, err := httpx.PathUUID(r, "uid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Reconcile(r.Context(), uid)
	if err != nil {
		h.fail(w, "reconcile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		httpx.Error(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ErrAlreadyUnlocked), errors.Is(err, ErrAlreadyRefunded):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrContractorNotFound), errors.Is(err, ErrNotUnlocked):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotApproved), errors.Is(err, ErrNotContractor),
		errors.Is(err, ErrNotEntitled), errors.Is(err, ErrForbidden):
		httpx.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnknownPackage), errors.Is(err, ErrCostMismatch):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		h.log.Warn(op+" failed", "error", err)
		httpx.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.log.Error(op+" failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, op+" failed")
	}
}
