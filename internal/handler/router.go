package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/security/middleware"
	"github.com/aryan0dhankhar/rentledger/internal/security/ratelimit"
)

const maxBodyBytes = 1 << 20

// Handlers groups the endpoint handlers mounted by the router
type Handlers struct {
	Auth       *AuthHandler
	Properties *PropertyHandler
	Contracts  *ContractHandler
	Payments   *PaymentHandler
	Tickets    *TicketHandler
	Tenants    *TenantHandler
	Health     *HealthHandler
}

// RouterConfig carries the cross-cutting collaborators of the HTTP surface
type RouterConfig struct {
	Tokens      middleware.PrincipalResolver
	Limiter     ratelimit.Limiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the API. Middleware order: recover, request id, logging,
// CORS, metrics; /api adds input checks, then authentication and rate limiting.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(metrics.HTTPMetricsMiddleware)

	r.Get("/healthz", h.Health.Health)
	r.Get("/readyz", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SanitizeInputs(log))
		r.Use(middleware.ValidateJSONContentType(log))
		r.Use(middleware.LimitBody(maxBodyBytes))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.Limiter, log))
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/login", h.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.Tokens, log))
			r.Use(middleware.RateLimit(cfg.Limiter, log))

			r.Post("/auth/change-password", h.Auth.ChangePassword)

			r.Route("/properties", func(r chi.Router) {
				r.Post("/", h.Properties.Create)
				r.Get("/", h.Properties.List)
				r.Get("/{id}", h.Properties.Get)
				r.Put("/{id}", h.Properties.Update)
				r.Delete("/{id}", h.Properties.Delete)
				r.Put("/{id}/status", h.Properties.SetStatus)
			})

			r.Route("/contracts", func(r chi.Router) {
				r.Post("/", h.Contracts.Create)
				r.Get("/", h.Contracts.List)
				r.Get("/{id}", h.Contracts.Get)
				r.Post("/{id}/terminate", h.Contracts.Terminate)
				r.Post("/{id}/documents", h.Contracts.AddDocument)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", h.Payments.Create)
				r.Get("/", h.Payments.List)
				r.Get("/{id}", h.Payments.Get)
				r.Put("/{id}", h.Payments.Update)
				r.Post("/{id}/proof", h.Payments.UploadProof)
			})

			r.Route("/tickets", func(r chi.Router) {
				r.Post("/", h.Tickets.Create)
				r.Get("/", h.Tickets.List)
				r.Get("/{id}", h.Tickets.Get)
				r.Put("/{id}", h.Tickets.UpdateStatus)
				r.Put("/{id}/assignment", h.Tickets.Assign)
			})

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/{id}", h.Tenants.Get)
				r.Put("/{id}", h.Tenants.Update)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return otelhttp.NewHandler(r, "rentledger-api")
}
