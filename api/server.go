/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend
  5. Auth:       Identity on every /api route (auth.go)

ROUTE GROUPS:
  /health               Liveness + database ping (no auth)
  /api/action-items/*   Action items
  /api/dashboard/*      KPIs, burndown, pareto
  /api/studies/*        Studies
  /api/sla-rules        SLA policy rules
  /api/calendar/*       Business calendar
  /api/admin/*          Operator actions
  /api/scenarios/*      Demo data (development only)

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

// RouterOptions configures cross-cutting concerns of the router.
type RouterOptions struct {
	CORSOrigins []string
	Auth        *Authenticator
	// Scenarios mounts the demo scenario routes, which reset the database.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderUserID, HeaderUserRole},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	auth := opts.Auth
	if auth == nil {
		auth = NewAuthenticator("")
	}
	coordinator := RequireRole(CoordinatorRoles...)
	manager := RequireRole(ManagerRoles...)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Action item routes
		r.Route("/action-items", func(r chi.Router) {
			r.Get("/", h.ListActionItems)
			r.With(coordinator).Post("/", h.CreateActionItem)
			r.Get("/stats", h.GetStats)
			r.Get("/{id}", h.GetActionItem)
			r.With(coordinator).Put("/{id}", h.UpdateActionItem)
			r.Patch("/{id}/status", h.ChangeStatus)
			r.With(coordinator).Delete("/{id}", h.DeleteActionItem)
		})

		// Dashboard routes
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/kpis", h.GetKPIs)
			r.Get("/burndown", h.GetBurndown)
			r.Get("/pareto", h.GetPareto)
		})

		// Study routes
		r.Route("/studies", func(r chi.Router) {
			r.Get("/", h.ListStudies)
			r.With(manager).Post("/", h.CreateStudy)
			r.Get("/{id}", h.GetStudy)
			r.With(coordinator).Put("/{id}", h.UpdateStudy)
			r.With(manager).Delete("/{id}", h.CloseStudy)
		})

		// SLA rule routes
		r.Route("/sla-rules", func(r chi.Router) {
			r.Get("/", h.ListSLARules)
			r.With(manager).Post("/", h.CreateSLARule)
		})

		r.Get("/calendar/holidays", h.ListHolidays)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(manager)
			r.Get("/escalations", h.GetEscalationSchedule)
			r.Post("/escalations/refresh", h.RefreshEscalations)
		})

		// Scenario routes
		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.With(manager).Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
