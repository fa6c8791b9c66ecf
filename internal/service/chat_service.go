package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/pkg/ai"
)

var (
	// ErrEmptyMessage indicates the chat message is blank after sanitising.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrChatUnavailable indicates the assistant could not be reached.
	ErrChatUnavailable = errors.New("failed to send message, please try again later")
)

// ChatConn is the subset of a websocket connection used by the chat loop.
type ChatConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
}

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	StudentID     uint
	CorrelationID string
	Context       context.Context
}

type chatFrame struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply,omitempty"`
	Message string `json:"message,omitempty"`
}

// ChatService forwards student questions to the assistant.
type ChatService interface {
	Ask(ctx context.Context, studentID uint, payload dto.ChatRequest) (dto.ChatResponse, error)
	ServeConnection(conn ChatConn, opts ChatConnectionOptions)
}

type chatService struct {
	responder ai.Responder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewChatService creates a chat passthrough service.
func NewChatService(responder ai.Responder, validate *validator.Validate, logger zerolog.Logger) ChatService {
	return &chatService{
		responder: responder,
		validator: validate,
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/homework-grader/internal/service/chat"),
	}
}

func (s *chatService) Ask(ctx context.Context, studentID uint, payload dto.ChatRequest) (dto.ChatResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatResponse{}, err
	}

	message := ai.StripMarkup(payload.Message)
	if message == "" {
		return dto.ChatResponse{}, ErrEmptyMessage
	}

	ctx, span := s.tracer.Start(ctx, "chat.ask", trace.WithAttributes(
		attribute.Int("student.id", int(studentID)),
		attribute.Int("chat.length", len(message)),
	))
	defer span.End()

	reply, err := s.responder.Reply(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply failed")
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("chat reply failed")
		return dto.ChatResponse{}, ErrChatUnavailable
	}

	return dto.ChatResponse{Reply: reply}, nil
}

// ServeConnection answers each text frame with one JSON frame until the peer disconnects.
func (s *chatService) ServeConnection(conn ChatConn, opts ChatConnectionOptions) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := s.logger.With().Uint("student_id", opts.StudentID).Str("correlation_id", opts.CorrelationID).Logger()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("chat connection closed")
			return
		}

		var payload dto.ChatRequest
		if jsonErr := json.Unmarshal(raw, &payload); jsonErr != nil || payload.Message == "" {
			payload.Message = string(raw)
		}

		frame := chatFrame{Success: true}
		response, err := s.Ask(ctx, opts.StudentID, payload)
		if err != nil {
			frame = chatFrame{Success: false, Message: chatErrorMessage(err)}
		} else {
			frame.Reply = response.Reply
		}

		if err := conn.WriteJSON(frame); err != nil {
			logger.Debug().Err(err).Msg("chat write failed")
			return
		}
	}
}

func chatErrorMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return "message is required and must be at most 4000 characters"
	}
	return err.Error()
}
