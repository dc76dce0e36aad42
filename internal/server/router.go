// Package server exposes the engine over HTTP: login and logout, the
// session introspection endpoint, administrative account and policy
// actions, health and metrics.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/metrics/export/prometheus"
	"github.com/hirelink/hireauth/middleware"
)

// Permissions guarding the administrative routes.
const (
	PermPolicyReload  = "system:policy"
	PermAccountManage = "system:account"
)

// RouterOptions tailors the router for the daemon and for tests.
type RouterOptions struct {
	Engine *hireauth.Engine
	Logger logrus.FieldLogger
	// Metrics serves /actuator/prometheus. Nil uses a Prometheus exporter
	// over Engine.
	Metrics http.Handler
	// Routes mounts additional authenticated routes.
	Routes func(r chi.Router)
}

// NewRouter assembles the chi router. The session interceptor wraps the
// whole router, so a path is public only when it matches
// Interceptor.ExcludePaths; an unrouted path without a session is rejected
// before chi answers 404.
func NewRouter(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &handlers{engine: opts.Engine, log: log}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = prometheus.NewPrometheusExporter(opts.Engine).Handler()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(opts.Engine.Config().CORS))
	r.Use(middleware.RequestMetadata)
	r.Use(middleware.Authenticate(opts.Engine, log))

	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/health", h.health)
	r.Handle("/actuator/prometheus", metrics)

	r.Get("/me", h.me)

	r.Route("/admin", func(r chi.Router) {
		r.With(middleware.RequirePermission(opts.Engine, PermPolicyReload)).
			Post("/policy/reload", h.reloadPolicy)
		r.With(middleware.RequirePermission(opts.Engine, PermPolicyReload)).
			Get("/policy", h.policyStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(opts.Engine, PermAccountManage))
			r.Post("/accounts/{account}/kickout", h.kickOut)
			r.Post("/accounts/{account}/disable", h.disableAccount)
			r.Post("/accounts/{account}/enable", h.enableAccount)
			r.Get("/accounts/{account}/session", h.accountSession)
		})
	})

	if opts.Routes != nil {
		r.Group(opts.Routes)
	}

	return r
}
