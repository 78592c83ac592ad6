/*
server.go - HTTP router setup

PURPOSE:
  Wires the chi router: middleware, CORS, API routes, and the metrics
  endpoint. Keeps route layout in one place so handlers.go stays pure
  request handling.

USAGE:
  router := api.NewRouter(handler, []string{"http://localhost:3000"})
  http.ListenAndServe(":8080", router)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server lifecycle
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP router for the settlement service.
func NewRouter(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/workrecords", func(r chi.Router) {
			r.Get("/{id}", h.GetWorkRecord)
			r.Post("/{id}/settle", h.SettleWorkRecord)
		})
		r.Get("/reports/{id}", h.GetReport)
		r.Post("/scenarios/load", h.LoadScenario)
	})

	r.Get("/metrics", MetricsHandler().ServeHTTP)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
