package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zapponejosh/lunar-calendar-api/internal/config"
)

// SetupRoutes configures all HTTP routes and returns the router.
//
// Route structure:
//
//	GET  /health
//	GET  /api/v1/today
//	GET  /api/v1/dates/{date}
//	GET  /api/v1/range?start&end
//	GET  /api/v1/months/{year}
//	GET  /api/v1/months/{year}/{month}
//	GET  /api/v1/feasts/{year}
//	GET  /api/v1/anchors
//	GET  /api/v1/coverage
//	GET  /api/v1/astro/sunset?date&lat&lon
//	GET  /api/v1/astro/conjunction?date&lat
//
// Behind X-API-Key:
//
//	PUT  /api/v1/anchors
//	POST /api/v1/anchors/next
//	PUT  /api/v1/years/{year}/leap
//	PUT  /api/v1/projections
//	PUT  /api/v1/location
//	GET  /api/v1/preferences
//	PUT  /api/v1/preferences
func SetupRoutes(handlers *Handlers, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", "METHOD_NOT_ALLOWED")
	})

	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// ======================================================================
		// Public routes
		// ======================================================================
		r.Get("/today", handlers.GetToday)
		r.Get("/dates/{date}", handlers.GetDate)
		r.Get("/range", handlers.GetRange)
		r.Get("/months/{year}", handlers.GetMonthsForYear)
		r.Get("/months/{year}/{month}", handlers.GetMonth)
		r.Get("/feasts/{year}", handlers.GetFeasts)
		r.Get("/anchors", handlers.ListAnchors)
		r.Get("/coverage", handlers.GetCoverage)
		r.Get("/astro/sunset", handlers.GetSunset)
		r.Get("/astro/conjunction", handlers.GetConjunction)

		// ======================================================================
		// Authenticated routes
		// ======================================================================
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg, logger))

			r.Put("/anchors", handlers.SetAnchor)
			r.Post("/anchors/next", handlers.StartNextMonth)
			r.Put("/years/{year}/leap", handlers.SetLeapDecision)
			r.Put("/projections", handlers.SetProjection)
			r.Put("/location", handlers.SetLocation)
			r.Get("/preferences", handlers.GetPreferences)
			r.Put("/preferences", handlers.SetPreferences)
		})
	})

	return r
}
