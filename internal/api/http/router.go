package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-hub/internal/api/http/handlers"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Timer          *handlers.TimerHandler
	TimeEntries    *handlers.TimeEntriesHandler
	Team           *handlers.TeamHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Every API group is guarded by the
// dashboard route it backs, so the permission table governs the API too.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	app.Post("/auth/login", cfg.Auth.Login)

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}

	access := app.Group("/access", authenticated...)
	access.Get("/check", cfg.Auth.Check)
	access.Get("/landing", cfg.Auth.Landing)

	api := app.Group("/api", authenticated...)

	timer := api.Group("/timer", auth.RequireRoute(auth.RouteTimeTracking))
	timer.Get("", cfg.Timer.State)
	timer.Get("/stream", cfg.Timer.Stream)
	timer.Post("/stop", cfg.Timer.Stop)
	timer.Post("/:action", cfg.Timer.Action)

	entries := api.Group("/time-entries", auth.RequireRoute(auth.RouteTimeTracking))
	entries.Get("", cfg.TimeEntries.List)
	entries.Get("/summary", cfg.TimeEntries.Summary)
	entries.Delete("/:id", cfg.TimeEntries.Delete)

	team := api.Group("/team", auth.RequireRoute(auth.RouteTeam))
	team.Get("", cfg.Team.List)
	team.Post("", cfg.Team.Create)
}
