package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// UnavailableFeedback is stored in fallback results when the API cannot be reached.
	UnavailableFeedback = "AI grading service is temporarily unavailable, please try again later"
	// UngradeableFeedback prefixes fallback results whose reply could not be parsed.
	UngradeableFeedback = "AI grading reply could not be parsed"

	chatSystemPrompt = "You are a helpful assistant"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homework",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI chat completion requests",
	}, []string{"model", "operation"})

	aiOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homework",
		Subsystem: "ai",
		Name:      "grading_outcomes_total",
		Help:      "Number of grading attempts by outcome",
	}, []string{"model", "outcome"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homework",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed AI chat completion requests",
	}, []string{"model", "operation"})
)

// OpenAIConfig defines configuration options for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader and Responder against an OpenAI-compatible
// chat completion API such as DeepSeek.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	tracer := otel.Tracer("github.com/noah-isme/homework-grader/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "ai_grader").Logger(),
	}, nil
}

// Grade asks the model to score the document and parses its reply.
func (g *OpenAIGrader) Grade(parent context.Context, content string) GradeResult {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("content.length", len(content)),
	))
	defer span.End()

	reply, err := g.complete(ctx, "grade", []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt()},
		{Role: openai.ChatMessageRoleUser, Content: buildGradePrompt(content)},
	}, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn().Err(err).Msg("grading request failed")
		aiOutcomes.WithLabelValues(g.cfg.Model, string(OutcomeUnavailable)).Inc()
		return GradeResult{Feedback: UnavailableFeedback, Suggestions: []string{}, Outcome: OutcomeUnavailable}
	}

	payload, repair, err := parseGrade(reply)
	if err == nil {
		payload.Feedback = StripMarkup(payload.Feedback)
		if payload.Feedback == "" {
			err = errors.New("grading reply has empty feedback")
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn().Err(err).Str("reply", truncate(reply, 200)).Msg("grading reply rejected")
		aiOutcomes.WithLabelValues(g.cfg.Model, string(OutcomeUngradeable)).Inc()
		return GradeResult{
			Feedback:    fmt.Sprintf("%s: %v", UngradeableFeedback, err),
			Suggestions: []string{},
			Outcome:     OutcomeUngradeable,
			Raw:         reply,
		}
	}

	suggestions := make([]string, 0, len(payload.Suggestions))
	for _, suggestion := range payload.Suggestions {
		if cleaned := StripMarkup(suggestion); cleaned != "" {
			suggestions = append(suggestions, cleaned)
		}
	}

	outcome := OutcomeGraded
	if repair != "" {
		outcome = OutcomeRepaired
		g.logger.Info().Str("heuristic", repair).Msg("grading reply repaired")
	}
	aiOutcomes.WithLabelValues(g.cfg.Model, string(outcome)).Inc()
	span.SetAttributes(attribute.Float64("grade.score", payload.Score), attribute.String("grade.outcome", string(outcome)))

	return GradeResult{
		Score:       payload.Score,
		Feedback:    payload.Feedback,
		Suggestions: suggestions,
		Outcome:     outcome,
		Repair:      repair,
		Raw:         reply,
	}
}

// Reply forwards a chat message and returns the assistant answer.
func (g *OpenAIGrader) Reply(parent context.Context, message string) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai.reply", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	reply, err := g.complete(ctx, "chat", []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: message},
	}, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return reply, nil
}

func (g *OpenAIGrader) complete(parent context.Context, operation string, messages []openai.ChatCompletionMessage, jsonReply bool) (string, error) {
	ctx, cancel := context.WithTimeout(parent, g.cfg.Timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages:    messages,
	}
	if jsonReply {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model, operation).Inc()
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(g.cfg.Model, operation).Inc()
		return "", fmt.Errorf("openai %s: no choices returned", operation)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func graderSystemPrompt() string {
	return "You are a strict but encouraging teacher grading student documents. Respond only with a json object " +
		`of the form {"score": <number 0-100>, "feedback": "<overall assessment>", "suggestions": ["<suggestion>", ...]}.`
}

func buildGradePrompt(content string) string {
	builder := strings.Builder{}
	builder.WriteString("Grade the following submission on a 0-100 scale.\n")
	builder.WriteString("Score bands: 90-100 excellent, 80-89 good, 70-79 fair, 60-69 pass, below 60 fail.\n")
	builder.WriteString("Assess completeness, accuracy, clarity and structure.\n\n")
	builder.WriteString("## Submission\n")
	builder.WriteString(content)
	builder.WriteString("\n\nReturn JSON.")
	return builder.String()
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
