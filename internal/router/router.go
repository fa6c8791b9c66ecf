package router

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/noah-isme/homework-grader/internal/config"
	"github.com/noah-isme/homework-grader/internal/handler"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/observability"
	"github.com/noah-isme/homework-grader/internal/utils"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	SubmissionHandler *handler.SubmissionHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	ChatHandler       *handler.ChatHandler
	ClassHandler      *handler.ClassHandler

	Sessions *session.Store
	Tokens   *middleware.TokenIssuer

	// UploadLimit and ChatLimit guard the AI-backed routes; nil disables them.
	UploadLimit fiber.Handler
	ChatLimit   fiber.Handler

	HealthProbes map[string]handler.HealthProbe
	Metrics      bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.Metrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	requireStudent := middleware.RequireStudent(deps.Sessions, deps.Tokens)

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api, requireStudent)
	}
	if deps.ClassHandler != nil {
		deps.ClassHandler.Register(api)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api, requireStudent, deps.UploadLimit)
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.Register(api, requireStudent)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api, requireStudent, deps.ChatLimit)
	}
}

// ErrorHandler renders framework errors (unknown routes, oversized bodies) in the API envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	if code == fiber.StatusRequestEntityTooLarge {
		message = "file exceeds maximum allowed size"
	}

	return utils.SendError(c, code, message)
}
