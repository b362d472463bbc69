// Package httptransport assembles the HTTP surface: public did:web and
// health routes, the Prometheus endpoint, and the authenticated API.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"miw/internal/platform/metrics"
	"miw/internal/platform/middleware"
)

// Registrar mounts a feature's routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that must stay reachable without a bearer
// token, such as the did:web documents.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// Deps carries everything the router needs. Handlers register themselves so
// the router stays free of per-feature route knowledge.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.IdentityValidator

	Public PublicRegistrar
	API    []Registrar

	Health http.HandlerFunc
}

// NewRouter builds the chi router with the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())
	if d.Health != nil {
		r.Get("/healthz", d.Health)
	}
	if d.Public != nil {
		d.Public.RegisterPublic(r)
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.RequireAuth(d.Validator, d.Logger))
		for _, reg := range d.API {
			reg.Register(api)
		}
	})

	return r
}
