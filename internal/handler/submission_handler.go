package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/utils"
)

// SubmissionHandler exposes upload, regrade and history endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs a SubmissionHandler.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register binds the submission routes. uploadLimit may be nil.
func (h *SubmissionHandler) Register(router fiber.Router, requireStudent, uploadLimit fiber.Handler) {
	router.Post("/upload_homework", guarded(h.upload, requireStudent, uploadLimit)...)
	router.Post("/correct", guarded(h.regrade, requireStudent, uploadLimit)...)
	router.Get("/user/submissions", requireStudent, h.list)
	router.Get("/submission/:id", requireStudent, h.detail)
}

func (h *SubmissionHandler) upload(c *fiber.Ctx) error {
	input := service.UploadInput{
		StudentID: middleware.StudentID(c),
		DocType:   c.FormValue("doc_type"),
	}
	if file, err := c.FormFile("file"); err == nil {
		input.File = file
	}

	result, err := h.service.Upload(withRequestContext(c), input)
	if err != nil {
		return h.handleError(c, err)
	}

	return h.sendOutcome(c, "homework uploaded and graded", result)
}

func (h *SubmissionHandler) regrade(c *fiber.Ctx) error {
	var payload dto.RegradeRequest
	if err := c.BodyParser(&payload); err != nil || payload.FileID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "fileId is required")
	}

	result, err := h.service.Regrade(withRequestContext(c), middleware.StudentID(c), payload.FileID)
	if err != nil {
		return h.handleError(c, err)
	}

	return h.sendOutcome(c, "homework graded", result)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var query dto.SubmissionListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.service.List(withRequestContext(c), middleware.StudentID(c), query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendPaginated(c, "submission history", page.Items, utils.NewPageMeta(page.Page, page.PerPage, page.Total))
}

func (h *SubmissionHandler) detail(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(withRequestContext(c), middleware.StudentID(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission detail", submission)
}

// sendOutcome answers 200 with the correction when grading succeeded. Otherwise the record
// was kept as pending and the caller gets 202 with its id so it can retry via /correct.
func (h *SubmissionHandler) sendOutcome(c *fiber.Ctx, message string, result dto.UploadResponse) error {
	if result.Graded() {
		return utils.SendSuccess(c, message, result)
	}

	requestLogger(h.logger, c).Warn().
		Uint("record_id", result.RecordID).
		Str("grading_outcome", result.GradingOutcome).
		Msg("submission stored without grade")

	status := fiber.StatusAccepted
	if result.GradingOutcome == service.GradingOutcomeConflict {
		status = fiber.StatusConflict
	}

	return utils.SendFailure(c, status, result.Message, fiber.Map{
		"record_id":       result.RecordID,
		"grading_outcome": result.GradingOutcome,
		"data":            result,
	})
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrFileRequired),
		errors.Is(err, service.ErrEmptyFileName),
		errors.Is(err, service.ErrUnsupportedFileType),
		errors.Is(err, service.ErrInvalidDocType),
		errors.Is(err, service.ErrUnreadableDocument),
		errors.Is(err, service.ErrEmptyDocument):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyGraded):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
