package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/monthlykey"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/observability"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/rbac"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
	"github.com/SiroccoBreeze/pony-knows-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	RBACMiddleware    rbac.Middleware
	PermissionHandler *rbac.Handler
	CredentialHandler *monthlykey.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router for the access-control service.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/permissions", params.PermissionHandler.MountRoutes)
	r.Route("/credential", params.CredentialHandler.MountRoutes)

	r.Route("/admin/credential", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireSuper())
		params.CredentialHandler.MountAdminRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/admin/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireSuper())
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
