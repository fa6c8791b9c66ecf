package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/repository"
)

// AnalyticsService produces per-student statistics and trend data.
type AnalyticsService interface {
	Stats(ctx context.Context, studentID uint) (dto.StatsResponse, error)
	Analysis(ctx context.Context, studentID uint) (dto.AnalysisResponse, error)
	Invalidate(ctx context.Context, studentID uint)
}

type analyticsService struct {
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAnalyticsService builds the analytics aggregator. A nil cache disables caching.
func NewAnalyticsService(submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "analytics_service").Logger(),
		now:         time.Now,
	}
}

func statsCacheKey(studentID uint) string {
	return fmt.Sprintf("homework:stats:student:%d", studentID)
}

func analysisCacheKey(studentID uint) string {
	return fmt.Sprintf("homework:analysis:student:%d", studentID)
}

func (s *analyticsService) Stats(ctx context.Context, studentID uint) (dto.StatsResponse, error) {
	var response dto.StatsResponse
	if s.readCache(ctx, statsCacheKey(studentID), &response) {
		return response, nil
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	stats, err := s.submissions.Stats(ctx, studentID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return dto.StatsResponse{}, fmt.Errorf("load stats: %w", err)
	}

	response = dto.StatsResponse{
		TotalSubmissions:   stats.Total,
		AverageScore:       math.Round(stats.AverageScore*100) / 100,
		MonthlySubmissions: stats.ThisMonth,
	}
	s.writeCache(ctx, statsCacheKey(studentID), response)

	return response, nil
}

func (s *analyticsService) Analysis(ctx context.Context, studentID uint) (dto.AnalysisResponse, error) {
	var response dto.AnalysisResponse
	if s.readCache(ctx, analysisCacheKey(studentID), &response) {
		return response, nil
	}

	trend, err := s.submissions.ScoreTrend(ctx, studentID)
	if err != nil {
		return dto.AnalysisResponse{}, fmt.Errorf("load score trend: %w", err)
	}
	counts, err := s.submissions.CountByType(ctx, studentID)
	if err != nil {
		return dto.AnalysisResponse{}, fmt.Errorf("load type distribution: %w", err)
	}

	response.ScoreTrend = make([]dto.ScoreTrendPoint, 0, len(trend))
	for _, point := range trend {
		response.ScoreTrend = append(response.ScoreTrend, dto.ScoreTrendPoint{
			Date:  point.SubmitTime.UTC().Format("2006-01-02"),
			Score: point.Score,
		})
	}

	byType := make(map[models.DocType]int64, len(counts))
	for _, count := range counts {
		byType[count.DocType] = count.Count
	}
	response.TypeDistribution = make([]dto.TypeShare, 0, len(models.DocTypes))
	for _, docType := range models.DocTypes {
		response.TypeDistribution = append(response.TypeDistribution, dto.TypeShare{
			DocType: string(docType),
			Count:   byType[docType],
		})
	}

	s.writeCache(ctx, analysisCacheKey(studentID), response)
	return response, nil
}

func (s *analyticsService) Invalidate(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(studentID), analysisCacheKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate analytics cache")
	}
}

func (s *analyticsService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read analytics cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), target); err != nil {
		return false
	}

	s.logger.Debug().Str("key", key).Msg("analytics cache hit")
	return true
}

func (s *analyticsService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store analytics cache")
	}
}
