package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/session"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token          string       `json:"token"`
	User           *models.User `json:"user"`
	DashboardRoute string       `json:"dashboardRoute"`
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

func (h *Handler) RegisterHomeowner(w http.ResponseWriter, r *http.Request) {
	var req HomeownerRegistration
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	u, token, err := h.svc.RegisterHomeowner(r.Context(), req)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse(u, token))
}

func (h *Handler) RegisterContractor(w http.ResponseWriter, r *http.Request) {
	var req ContractorRegistration
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	u, token, err := h.svc.RegisterContractor(r.Context(), req)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse(u, token))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.Error(w, http.StatusBadRequest, "missing email or password")
		return
	}
	u, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse(u, token))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := h.svc.Me(r.Context(), sess.UID)
	if err != nil {
		h.fail(w, "load profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var patch ProfileUpdate
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), sess.UID, patch)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.Error(w, http.StatusBadRequest, httpx.FormatValidationError(verr.Err))
	case errors.Is(err, ErrDuplicateEmail):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error(op+" failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, op+" failed")
	}
}

func authResponse(u *models.User, token string) AuthResponse {
	return AuthResponse{Token: token, User: u, DashboardRoute: models.DashboardRoute(u.Role)}
}
