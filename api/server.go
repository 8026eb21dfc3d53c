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
  4. CORS:       Cross-origin requests for admin tooling

ROUTE GROUPS:
  /api/calendar/*       Planned date computation and eligibility
  /api/config/*         Configuration resolution and CRUD
  /api/holiday-zones/*  Zone registry
  /api/holidays/*       Holiday records and range listings
  /api/import           CSV import
  /api/audit-logs       Audit trail queries
  /api/planned-debits   Persisted engine output
  /api/scheduler/*      Generation scheduler trigger and status

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Calendar routes
		r.Route("/calendar", func(r chi.Router) {
			r.Post("/planned-date", h.CalculatePlannedDate)
			r.Post("/planned-dates/batch", h.CalculateBatch)
			r.Get("/eligibility", h.CheckEligibility)
		})

		// Configuration routes
		r.Route("/config", func(r chi.Router) {
			r.Get("/resolve", h.ResolveConfiguration)

			r.Get("/system", h.GetSystemConfig)
			r.Put("/system", h.SetSystemConfig)

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", h.ListCompanyConfigs)
				r.Post("/", h.CreateCompanyConfig)
				r.Get("/{id}", h.GetCompanyConfig)
				r.Put("/{id}", h.UpdateCompanyConfig)
				r.Delete("/{id}", h.DeleteCompanyConfig)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.ListClientConfigs)
				r.Post("/", h.CreateClientConfig)
				r.Get("/{id}", h.GetClientConfig)
				r.Put("/{id}", h.UpdateClientConfig)
				r.Delete("/{id}", h.DeleteClientConfig)
			})

			r.Route("/contracts", func(r chi.Router) {
				r.Get("/", h.ListContractConfigs)
				r.Post("/", h.CreateContractConfig)
				r.Get("/{id}", h.GetContractConfig)
				r.Put("/{id}", h.UpdateContractConfig)
				r.Delete("/{id}", h.DeleteContractConfig)
			})
		})

		// Holiday routes
		r.Route("/holiday-zones", func(r chi.Router) {
			r.Get("/", h.ListZones)
			r.Post("/", h.CreateZone)
		})
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		// Import route
		r.Post("/import", h.Import)

		// Audit route
		r.Get("/audit-logs", h.QueryAuditLogs)

		// Planned debit routes
		r.Route("/planned-debits", func(r chi.Router) {
			r.Get("/", h.ListPlannedDebits)
			r.Post("/", h.CreatePlannedDebit)
		})

		// Scheduler routes (manual trigger and status)
		r.Route("/scheduler", func(r chi.Router) {
			r.Post("/run", h.TriggerGeneration)
			r.Get("/status", h.SchedulerStatus)
		})
	})

	return r
}
