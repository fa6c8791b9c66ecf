package handler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/middleware"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// fieldNames maps request struct fields to the names clients send them as.
var fieldNames = map[string]string{
	"Username": "username",
	"Password": "password",
	"Name":     "name",
	"Class":    "class",
	"Message":  "message",
	"FileID":   "fileId",
	"Page":     "page",
	"PerPage":  "per_page",
	"DocType":  "doc_type",
}

// validationMessage turns validator failures into one message per field, joined by "; ".
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fieldMessage(fieldErr))
	}
	return strings.Join(messages, "; ")
}

func fieldMessage(fieldErr validator.FieldError) string {
	field, ok := fieldNames[fieldErr.Field()]
	if !ok {
		field = strings.ToLower(fieldErr.Field())
	}

	unit := ""
	if fieldErr.Kind() == reflect.String {
		unit = " characters"
	}

	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, fieldErr.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, fieldErr.Param(), unit)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(strings.Fields(fieldErr.Param()), ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

// guarded prepends the non-nil middlewares to the route handler.
func guarded(handler fiber.Handler, middlewares ...fiber.Handler) []fiber.Handler {
	chain := make([]fiber.Handler, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		if mw != nil {
			chain = append(chain, mw)
		}
	}
	return append(chain, handler)
}
