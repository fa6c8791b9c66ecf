package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/models"
)

// ErrNotPending indicates a grade update matched no pending submission with that id.
var ErrNotPending = errors.New("submission is not pending")

// SubmissionFilter narrows a student's submission history.
type SubmissionFilter struct {
	StudentID uint
	DocType   *models.DocType
	Status    *string
	Page      int
	PageSize  int
}

// GradeUpdate carries the grading outcome written in a single statement.
type GradeUpdate struct {
	Score       float64
	Feedback    string
	Suggestions datatypes.JSON
	GradedAt    time.Time
}

// SubmissionStats aggregates a student's submission counters.
type SubmissionStats struct {
	Total        int64
	AverageScore float64
	ThisMonth    int64
}

// ScorePoint is a graded submission on the score trend line.
type ScorePoint struct {
	SubmitTime time.Time
	Score      float64
}

// TypeCount is the number of submissions of one document type.
type TypeCount struct {
	DocType models.DocType
	Count   int64
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetForStudent(ctx context.Context, id, studentID uint) (models.Submission, error)
	CompleteGrade(ctx context.Context, id uint, update GradeUpdate) error
	ListByStudent(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error)
	Stats(ctx context.Context, studentID uint, monthStart, monthEnd time.Time) (SubmissionStats, error)
	ScoreTrend(ctx context.Context, studentID uint) ([]ScorePoint, error)
	CountByType(ctx context.Context, studentID uint) ([]TypeCount, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetForStudent(ctx context.Context, id, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// CompleteGrade moves one pending submission to completed, matched by id only.
func (r *submissionRepository) CompleteGrade(ctx context.Context, id uint, update GradeUpdate) error {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Where("status = ?", models.SubmissionStatusPending).
		Updates(map[string]interface{}{
			"score":       update.Score,
			"feedback":    update.Feedback,
			"suggestions": update.Suggestions,
			"graded_at":   update.GradedAt,
			"status":      models.SubmissionStatusCompleted,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotPending
	}

	return nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("student_id = ?", filter.StudentID)

	if filter.DocType != nil {
		query = query.Where("doc_type = ?", *filter.DocType)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("submit_time DESC").Order("id DESC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *submissionRepository) Stats(ctx context.Context, studentID uint, monthStart, monthEnd time.Time) (SubmissionStats, error) {
	var stats SubmissionStats
	base := r.db.WithContext(ctx).Model(&models.Submission{}).Where("student_id = ?", studentID)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return SubmissionStats{}, err
	}

	var aggregate struct {
		Average *float64
	}
	if err := base.Session(&gorm.Session{}).
		Where("score IS NOT NULL").
		Select("AVG(score) AS average").
		Scan(&aggregate).Error; err != nil {
		return SubmissionStats{}, err
	}
	if aggregate.Average != nil {
		stats.AverageScore = *aggregate.Average
	}

	if err := base.Session(&gorm.Session{}).
		Where("submit_time >= ? AND submit_time < ?", monthStart, monthEnd).
		Count(&stats.ThisMonth).Error; err != nil {
		return SubmissionStats{}, err
	}

	return stats, nil
}

func (r *submissionRepository) ScoreTrend(ctx context.Context, studentID uint) ([]ScorePoint, error) {
	var points []ScorePoint
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("submit_time, score").
		Where("student_id = ?", studentID).
		Where("score IS NOT NULL").
		Order("submit_time ASC").
		Scan(&points).Error; err != nil {
		return nil, err
	}

	return points, nil
}

func (r *submissionRepository) CountByType(ctx context.Context, studentID uint) ([]TypeCount, error) {
	var counts []TypeCount
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("doc_type, COUNT(*) AS count").
		Where("student_id = ?", studentID).
		Group("doc_type").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	return counts, nil
}
