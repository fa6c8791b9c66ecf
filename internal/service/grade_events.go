package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/observability"
)

// GradeEventType names the event emitted after a submission is graded.
const GradeEventType = "submission.graded"

// GradeEvent is broadcast once a pending submission moves to completed.
type GradeEvent struct {
	Type         string         `json:"type"`
	SubmissionID uint           `json:"submission_id"`
	StudentID    uint           `json:"student_id"`
	DocType      models.DocType `json:"doc_type"`
	Score        float64        `json:"score"`
	GradedAt     time.Time      `json:"graded_at"`
}

// GradePublisher fans grade events out to subscribers. Publishing never fails the caller.
type GradePublisher interface {
	Publish(ctx context.Context, event GradeEvent)
}

type gradeEventPublisher struct {
	redis       *redis.Client
	redisTopic  string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
}

// NewGradeEventPublisher publishes to a Redis channel and a NATS subject; either
// transport may be nil.
func NewGradeEventPublisher(redisClient *redis.Client, channel string, natsConn *nats.Conn, subject string, logger zerolog.Logger) GradePublisher {
	return &gradeEventPublisher{
		redis:       redisClient,
		redisTopic:  channel,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "grade_events").Logger(),
	}
}

func (p *gradeEventPublisher) Publish(ctx context.Context, event GradeEvent) {
	if event.Type == "" {
		event.Type = GradeEventType
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode grade event")
		return
	}

	if p.redis != nil && p.redisTopic != "" {
		if err := p.redis.Publish(ctx, p.redisTopic, payload).Err(); err != nil {
			observability.GradeEvents().WithLabelValues("redis", "error").Inc()
			p.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish grade event to redis")
		} else {
			observability.GradeEvents().WithLabelValues("redis", "ok").Inc()
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.GradeEvents().WithLabelValues("nats", "error").Inc()
			p.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish grade event to nats")
		} else {
			observability.GradeEvents().WithLabelValues("nats", "ok").Inc()
		}
	}
}
