package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/utils"
)

// AuthHandler exposes registration, login and profile endpoints.
type AuthHandler struct {
	service  service.AuthService
	sessions *session.Store
	tokens   *middleware.TokenIssuer
	logger   zerolog.Logger
}

// NewAuthHandler constructs an AuthHandler. tokens may be nil when bearer tokens are disabled.
func NewAuthHandler(service service.AuthService, sessions *session.Store, tokens *middleware.TokenIssuer, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds the account routes. requireStudent guards the profile route.
func (h *AuthHandler) Register(router fiber.Router, requireStudent fiber.Handler) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Post("/logout", h.logout)
	router.Get("/user/info", requireStudent, h.info)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.service.Register(withRequestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return h.startSession(c, fiber.StatusCreated, "registration successful", profile)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.service.Login(withRequestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return h.startSession(c, fiber.StatusOK, "login successful", profile)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	if err := middleware.EndSession(c, h.sessions); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to destroy session")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "logged out", nil)
}

func (h *AuthHandler) info(c *fiber.Ctx) error {
	profile, err := h.service.Profile(withRequestContext(c), middleware.StudentID(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student profile", profile)
}

func (h *AuthHandler) startSession(c *fiber.Ctx, status int, message string, profile dto.StudentProfile) error {
	if err := middleware.StartSession(c, h.sessions, profile.ID); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Uint("student_id", profile.ID).Msg("failed to start session")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	response := dto.LoginResponse{Student: profile}
	if h.tokens != nil {
		token, expiresAt, err := h.tokens.Issue(profile.ID)
		if err != nil {
			requestLogger(h.logger, c).Error().Err(err).Uint("student_id", profile.ID).Msg("failed to issue token")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
		response.Token = token
		response.ExpiresAt = &expiresAt
	}

	return utils.SendSuccessWithStatus(c, status, message, response)
}

func (h *AuthHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrUsernameTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusUnauthorized, middleware.MessageLoginRequired)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("auth request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
