package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/renovo/backend/internal/admin"
	"github.com/renovo/backend/internal/analytics"
	"github.com/renovo/backend/internal/auth"
	"github.com/renovo/backend/internal/bids"
	"github.com/renovo/backend/internal/config"
	"github.com/renovo/backend/internal/httpx"
	"github.com/renovo/backend/internal/ledger"
	"github.com/renovo/backend/internal/messaging"
	"github.com/renovo/backend/internal/metrics"
	"github.com/renovo/backend/internal/middleware"
	"github.com/renovo/backend/internal/models"
	"github.com/renovo/backend/internal/projects"
)

type Handlers struct {
	Auth      *auth.Handler
	Projects  *projects.Handler
	Ledger    *ledger.Handler
	Bids      *bids.Handler
	Messaging *messaging.Handler
	Admin     *admin.Handler
	Analytics *analytics.Handler
}

type Deps struct {
	Handlers Handlers
	Sessions middleware.SessionResolver
	Limiter  *middleware.RateLimiter
	// Realtime serves GET /api/v1/ws. It runs after authentication.
	Realtime http.Handler
	// Ready reports whether the backing stores answer.
	Ready func(ctx context.Context) error
	CORS  config.CORSConfig
	Log   *slog.Logger
}

// New returns the complete HTTP handler: probes, metrics and the API under /api/v1.
func New(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	h := d.Handlers
	homeowner := middleware.RequireRole(models.RoleHomeowner)
	contractor := middleware.RequireRole(models.RoleContractor)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	participant := middleware.RequireRole(models.RoleHomeowner, models.RoleContractor)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				d.Log.Warn("readiness check failed", "error", err)
				httpx.Error(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Anonymous routes are limited per address, authenticated ones per uid.
		limit := func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Handler)
			}
		}

		r.Group(func(r chi.Router) {
			limit(r)
			r.Post("/auth/register/homeowner", h.Auth.RegisterHomeowner)
			r.Post("/auth/register/contractor", h.Auth.RegisterContractor)
			r.Post("/auth/login", h.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(d.Sessions))
			limit(r)

			r.Get("/auth/me", h.Auth.Me)
			r.Patch("/account/profile", h.Auth.UpdateProfile)
			r.Get("/projects/{id}", h.Projects.Get)
			r.Get("/projects/{id}/private", h.Ledger.PrivateDetails)
			if d.Realtime != nil {
				r.Handle("/ws", d.Realtime)
			}

			r.Group(func(r chi.Router) {
				r.Use(homeowner)
				r.Post("/projects", h.Projects.Create)
				r.Get("/homeowner/projects", h.Projects.ListMine)
				r.Patch("/projects/{id}/status", h.Projects.UpdateStatus)
				r.Get("/projects/{id}/bids", h.Bids.ListForProject)
				r.Get("/homeowner/bids", h.Bids.ListReceived)
				r.Patch("/bids/{id}/status", h.Bids.UpdateStatus)
				r.Get("/homeowner/analytics", h.Analytics.Homeowner)
			})

			r.Group(func(r chi.Router) {
				r.Use(contractor)
				r.Get("/marketplace/projects", h.Projects.Marketplace)
				r.Post("/projects/{id}/unlock", h.Ledger.Unlock)
				r.Get("/contractor/unlocks", h.Ledger.ListUnlocks)
				r.Get("/credits", h.Ledger.Credits)
				r.Get("/credits/packages", h.Ledger.Packages)
				r.Post("/credits/purchase", h.Ledger.Purchase)
				r.Post("/projects/{id}/bids", h.Bids.Submit)
				r.Get("/contractor/bids", h.Bids.ListMine)
				r.Get("/contractor/analytics", h.Analytics.Contractor)
			})

			r.Group(func(r chi.Router) {
				r.Use(participant)
				r.Post("/conversations", h.Messaging.Open)
				r.Get("/conversations", h.Messaging.List)
				r.Get("/conversations/{id}/messages", h.Messaging.Messages)
				r.Post("/conversations/{id}/messages", h.Messaging.Send)
				r.Post("/conversations/{id}/read", h.Messaging.MarkRead)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/contractors", h.Admin.ListContractors)
				r.Get("/users", h.Admin.ListUsers)
				r.Post("/contractors/{uid}/verification", h.Admin.SetVerification)
				r.Post("/refunds", h.Ledger.Refund)
				r.Get("/ledger/{uid}/reconcile", h.Ledger.Reconcile)
				r.Get("/analytics", h.Analytics.Admin)
			})
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   d.CORS.AllowedOrigins,
		AllowedMethods:   d.CORS.AllowedMethods,
		AllowedHeaders:   d.CORS.AllowedHeaders,
		AllowCredentials: d.CORS.AllowCredentials,
		MaxAge:           d.CORS.MaxAge,
	})
	return c.Handler(r)
}
