/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     zap request logging with the request ID
  4. CORS:       Any origin; the API is token based, not cookie based
  5. Auth:       Bearer token to caller identity (per-action role checks)

ROUTES:
  GET|POST /api        Action endpoint (action in body or query)
  GET|POST /api.php    Alias kept for existing clients
  GET      /healthz    Database ping
  GET      /metrics    Prometheus metrics

SEE ALSO:
  - dispatch.go: Action dispatch
  - handlers.go: Action implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/tuition-engine/auth"
)

// NewRouter creates a new router with all routes configured. A nil authn
// leaves every request anonymous, so only public actions succeed.
func NewRouter(h *Handler, authn *auth.Middleware) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequest)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if authn != nil {
			r.Use(authn.Wrap)
		}
		for _, path := range []string{"/api", "/api/", "/api.php"} {
			r.Get(path, h.ServeAction)
			r.Post(path, h.ServeAction)
		}
	})

	return r
}

// Health reports whether the database is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DenyJSON writes authentication failures in the response envelope.
func (h *Handler) DenyJSON(w http.ResponseWriter, _ *http.Request, status int, message string) {
	h.writeFailure(w, status, message)
}
