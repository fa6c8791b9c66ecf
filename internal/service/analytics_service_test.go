package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/repository"
)

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

func seedSubmission(t *testing.T, db *gorm.DB, studentID uint, docType models.DocType, submitted time.Time, score *float64) models.Submission {
	t.Helper()
	submission := models.Submission{
		StudentID:  studentID,
		DocType:    docType,
		Title:      string(docType) + ".docx",
		FileName:   "stored_" + string(docType) + ".docx",
		Content:    "content",
		SubmitTime: submitted,
		Status:     models.SubmissionStatusPending,
	}
	if score != nil {
		submission.Score = score
		submission.Feedback = stringPtr("feedback")
		submission.Status = models.SubmissionStatusCompleted
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func newAnalyticsFixture(t *testing.T) (*gorm.DB, *miniredis.Miniredis, AnalyticsService) {
	t.Helper()
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	db := newServiceTestDB(t)
	svc := NewAnalyticsService(repository.NewSubmissionRepository(db), redisClient, 5*time.Minute, zerolog.Nop())
	svc.(*analyticsService).now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return db, mini, svc
}

func TestAnalyticsStatsAreCachedUntilInvalidated(t *testing.T) {
	db, mini, svc := newAnalyticsFixture(t)
	student := seedStudent(t, db, "maya")
	ctx := context.Background()

	seedSubmission(t, db, student.ID, models.DocTypeHomework, time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC), floatPtr(70))
	seedSubmission(t, db, student.ID, models.DocTypeTest, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC), floatPtr(90))
	seedSubmission(t, db, student.ID, models.DocTypeExam, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), nil)

	first, err := svc.Stats(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, dto.StatsResponse{TotalSubmissions: 3, AverageScore: 80, MonthlySubmissions: 2}, first)
	require.True(t, mini.Exists(statsCacheKey(student.ID)))
	require.Equal(t, 5*time.Minute, mini.TTL(statsCacheKey(student.ID)))

	seedSubmission(t, db, student.ID, models.DocTypeHomework, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), floatPtr(100))

	cached, err := svc.Stats(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, first, cached)

	svc.Invalidate(ctx, student.ID)
	require.False(t, mini.Exists(statsCacheKey(student.ID)))

	fresh, err := svc.Stats(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), fresh.TotalSubmissions)
	require.Equal(t, int64(3), fresh.MonthlySubmissions)
	require.InDelta(t, 86.67, fresh.AverageScore, 0.001)
}

func TestAnalyticsAnalysisListsEveryDocType(t *testing.T) {
	db, _, svc := newAnalyticsFixture(t)
	student := seedStudent(t, db, "noah")
	other := seedStudent(t, db, "olga")
	ctx := context.Background()

	seedSubmission(t, db, student.ID, models.DocTypeTest, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC), floatPtr(90))
	seedSubmission(t, db, student.ID, models.DocTypeHomework, time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC), floatPtr(70))
	seedSubmission(t, db, student.ID, models.DocTypeHomework, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), nil)
	seedSubmission(t, db, other.ID, models.DocTypeExam, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), floatPtr(10))

	analysis, err := svc.Analysis(ctx, student.ID)
	require.NoError(t, err)

	require.Equal(t, []dto.ScoreTrendPoint{
		{Date: "2025-02-10", Score: 70},
		{Date: "2025-03-05", Score: 90},
	}, analysis.ScoreTrend)
	require.Equal(t, []dto.TypeShare{
		{DocType: "homework", Count: 2},
		{DocType: "test", Count: 1},
		{DocType: "exam", Count: 0},
	}, analysis.TypeDistribution)
}

func TestAnalyticsWithoutCache(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewAnalyticsService(repository.NewSubmissionRepository(db), nil, time.Minute, zerolog.Nop())
	student := seedStudent(t, db, "paul")

	stats, err := svc.Stats(context.Background(), student.ID)
	require.NoError(t, err)
	require.Equal(t, dto.StatsResponse{}, stats)

	analysis, err := svc.Analysis(context.Background(), student.ID)
	require.NoError(t, err)
	require.Empty(t, analysis.ScoreTrend)
	require.Len(t, analysis.TypeDistribution, 3)

	svc.Invalidate(context.Background(), student.ID)
}
