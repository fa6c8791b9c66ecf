package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/repository"
)

// ClassService lists the class catalogue shown on the registration form.
type ClassService interface {
	List(ctx context.Context) ([]dto.ClassResponse, error)
}

type classService struct {
	classes repository.ClassRepository
	logger  zerolog.Logger
}

// NewClassService constructs a class service.
func NewClassService(classes repository.ClassRepository, logger zerolog.Logger) ClassService {
	return &classService{
		classes: classes,
		logger:  logger.With().Str("component", "class_service").Logger(),
	}
}

func (s *classService) List(ctx context.Context) ([]dto.ClassResponse, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list classes")
		return nil, err
	}
	return dto.NewClassResponses(classes), nil
}
