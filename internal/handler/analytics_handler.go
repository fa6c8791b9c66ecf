package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/utils"
)

// AnalyticsHandler exposes the per-student statistics endpoints.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register binds the statistics routes.
func (h *AnalyticsHandler) Register(router fiber.Router, requireStudent fiber.Handler) {
	router.Get("/user/stats", requireStudent, h.stats)
	router.Get("/user/analysis", requireStudent, h.analysis)
}

func (h *AnalyticsHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(withRequestContext(c), middleware.StudentID(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "submission statistics", stats)
}

func (h *AnalyticsHandler) analysis(c *fiber.Ctx) error {
	analysis, err := h.service.Analysis(withRequestContext(c), middleware.StudentID(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load analysis")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "learning analysis", analysis)
}
