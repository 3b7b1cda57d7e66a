/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request for tracing
  2. Logger:     structured request logging (zerolog)
  3. Recoverer:  panic recovery (500 instead of crash)
  4. Metrics:    prometheus counters and latency histograms
  5. CORS:       cross-origin requests for a local frontend

ROUTE GROUPS:
  /api/vehicles/*   Vehicle management, trips, computed views, export
  /api/trips/*      Trip mutations addressed by trip id
  /api/receipts/*   Receipt linking
  /api/scenarios/*  Demo scenario loading
  /metrics          Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. This serves a single-user desktop-style
  deployment bound to localhost.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/tripbook/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.CreateVehicle)
			r.Get("/{id}", h.GetVehicle)
			r.Put("/{id}", h.UpdateVehicle)
			r.Delete("/{id}", h.DeleteVehicle)

			r.Get("/{id}/trips", h.ListTrips)
			r.Post("/{id}/trips", h.CreateTrip)

			r.Get("/{id}/grid", h.GetGrid)
			r.Post("/{id}/preview", h.PreviewTrip)
			r.Get("/{id}/stats", h.GetStats)
			r.Post("/{id}/compensation", h.PlanCompensation)
			r.Get("/{id}/export", h.ExportLogbook)

			r.Get("/{id}/routes", h.ListRoutes)
			r.Get("/{id}/receipts", h.ListReceipts)
			r.Post("/{id}/receipts", h.SaveReceipt)
		})

		r.Route("/trips", func(r chi.Router) {
			r.Put("/{id}", h.UpdateTrip)
			r.Delete("/{id}", h.DeleteTrip)
			r.Post("/{id}/odometer", h.OverrideOdometer)
		})

		r.Route("/receipts", func(r chi.Router) {
			r.Post("/{id}/link", h.LinkReceipt)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
