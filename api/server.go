/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/data_health, /api/promo_summary,
  /api/promo_trends, /api/price_index     Compute endpoints
  /api/results/*                          Persisted result reads
  /api/reset                              Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080", "http://localhost:8501"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Compute endpoints
		r.Get("/data_health", h.ComputeHealth)
		r.Get("/promo_summary", h.ComputePromo)
		r.Get("/promo_trends", h.ComputeTrends)
		r.Get("/price_index", h.ComputePriceIndex)

		// Persisted result reads
		r.Route("/results", func(r chi.Router) {
			r.Get("/data_health", h.GetHealthScores)
			r.Get("/promo_summary", h.GetPromoSummaries)
			r.Get("/promo_trends", h.GetPromoTrends)
			r.Get("/price_index", h.GetPriceIndexes)
		})

		// Admin
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
