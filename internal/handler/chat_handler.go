package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/utils"
)

// ChatHandler wires the assistant endpoints including the websocket upgrade.
type ChatHandler struct {
	service service.ChatService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes. chatLimit may be nil.
func (h *ChatHandler) Register(router fiber.Router, requireStudent, chatLimit fiber.Handler) {
	router.Post("/chat", guarded(h.ask, requireStudent, chatLimit)...)
	router.Get("/chat/ws", requireStudent, h.upgrade, websocket.New(h.handleConnection))
}

func (h *ChatHandler) ask(c *fiber.Ctx) error {
	var payload dto.ChatRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Ask(withRequestContext(c), middleware.StudentID(c), payload)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrEmptyMessage):
			return utils.SendError(c, fiber.StatusBadRequest, "message is required and must be at most 4000 characters")
		case errors.Is(err, service.ErrChatUnavailable):
			return utils.SendError(c, fiber.StatusBadGateway, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("chat request failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
	}

	return utils.SendSuccess(c, "reply received", response)
}

func (h *ChatHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	c.Locals("request_ctx", middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c)))
	return c.Next()
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	studentID, _ := conn.Locals("user_id").(uint)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, middleware.MessageLoginRequired))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	correlation, _ := conn.Locals("correlation_id").(string)
	opts := service.ChatConnectionOptions{
		StudentID:     studentID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("student_id", studentID).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("student_id", studentID).Msg("chat websocket disconnected")
}
