package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/utils"
)

// ClassHandler lists the class catalogue.
type ClassHandler struct {
	service service.ClassService
	logger  zerolog.Logger
}

// NewClassHandler constructs a ClassHandler.
func NewClassHandler(service service.ClassService, logger zerolog.Logger) *ClassHandler {
	return &ClassHandler{
		service: service,
		logger:  logger.With().Str("component", "class_handler").Logger(),
	}
}

// Register binds the class route.
func (h *ClassHandler) Register(router fiber.Router) {
	router.Get("/classes", h.list)
}

func (h *ClassHandler) list(c *fiber.Ctx) error {
	classes, err := h.service.List(withRequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list classes")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "classes", classes)
}
