package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Reports        *handlers.ReportsHandler
	Stream         *handlers.StreamHandler
	Sweep          *handlers.SweepHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)
	app.Post("/internal/sla/sweep", cfg.Sweep.Sweep)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/assign-me", cfg.Tickets.AssignToMe)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachments)

	app.Get("/reports/summary", cfg.AuthMiddleware.Handle, auth.RequireStaff(), cfg.Reports.Summary)

	// EventSource cannot set headers, so the stream also takes ?token=
	app.Get("/events/stream", cfg.AuthMiddleware.WithQueryToken().Handle, cfg.Stream.Stream)
}

// NewApp builds the fiber application with global middleware.
func NewApp(cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(cfg.Logger, cfg.Metrics),
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.RequestTimeout)
	return app
}
