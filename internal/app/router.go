package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/umucyo/guarantee-gateway/internal/audit/http"
	"github.com/umucyo/guarantee-gateway/internal/auth"
	gatewayhttp "github.com/umucyo/guarantee-gateway/internal/gateway/http"
	"github.com/umucyo/guarantee-gateway/internal/observability"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
	"github.com/umucyo/guarantee-gateway/internal/telemetry"
	"github.com/umucyo/guarantee-gateway/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Auth           *auth.Middleware
	GatewayHandler *gatewayhttp.Handler
	AuditHandler   *audithttp.Handler
	RolesHandler   *rbac.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(telemetry.HTTPMiddleware(params.Config.serviceName()))
		if params.Auth != nil {
			r.Use(params.Auth.Authenticate)
		}
		r.Route("/operations", params.GatewayHandler.MountRoutes)
		if params.AuditHandler != nil {
			r.Route("/logs", params.AuditHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
