package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/homework-grader/internal/models"
)

// Correction is the grade attached to a completed submission.
type Correction struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// UploadResponse describes the outcome of the upload pipeline.
type UploadResponse struct {
	RecordID       uint           `json:"record_id"`
	DocType        models.DocType `json:"doc_type"`
	Title          string         `json:"title"`
	FileName       string         `json:"file_name"`
	FileURL        string         `json:"file_url,omitempty"`
	Status         string         `json:"status"`
	GradingOutcome string         `json:"grading_outcome"`
	Correction     *Correction    `json:"correction,omitempty"`
	Message        string         `json:"-"`
}

// Graded reports whether the pipeline attached a grade.
func (r UploadResponse) Graded() bool {
	return r.Status == models.SubmissionStatusCompleted && r.Correction != nil
}

// RegradeRequest asks for a pending submission to be graded again.
type RegradeRequest struct {
	FileID uint `json:"fileId" validate:"required,gt=0"`
}

// SubmissionListQuery holds history query string parameters.
type SubmissionListQuery struct {
	Page    int    `query:"page" validate:"omitempty,min=1"`
	PerPage int    `query:"per_page" validate:"omitempty,min=1,max=100"`
	DocType string `query:"doc_type" validate:"omitempty,oneof=homework test exam"`
}

// SubmissionSummary is one row of the submission history.
type SubmissionSummary struct {
	ID             uint           `json:"id"`
	DocType        models.DocType `json:"doc_type"`
	Title          string         `json:"title"`
	ContentSummary string         `json:"content_summary"`
	SubmitTime     time.Time      `json:"submit_time"`
	Score          *float64       `json:"score"`
	Status         string         `json:"status"`
}

// SubmissionPage is one page of a student's history.
type SubmissionPage struct {
	Items   []SubmissionSummary
	Page    int
	PerPage int
	Total   int64
}

// SubmissionDetail is the full view of a single submission.
type SubmissionDetail struct {
	SubmissionSummary
	FileName    string     `json:"file_name"`
	FileURL     string     `json:"file_url,omitempty"`
	Content     string     `json:"content"`
	Feedback    *string    `json:"feedback"`
	Suggestions []string   `json:"suggestions"`
	GradedAt    *time.Time `json:"graded_at"`
}

// NewSubmissionSummary maps a submission to a history row.
func NewSubmissionSummary(submission models.Submission) SubmissionSummary {
	return SubmissionSummary{
		ID:             submission.ID,
		DocType:        submission.DocType,
		Title:          submission.Title,
		ContentSummary: submission.ContentSummary,
		SubmitTime:     submission.SubmitTime,
		Score:          submission.Score,
		Status:         submission.Status,
	}
}

// NewSubmissionSummaries maps a page of submissions.
func NewSubmissionSummaries(submissions []models.Submission) []SubmissionSummary {
	summaries := make([]SubmissionSummary, 0, len(submissions))
	for _, submission := range submissions {
		summaries = append(summaries, NewSubmissionSummary(submission))
	}
	return summaries
}

// NewSubmissionDetail maps a submission to its detail view.
func NewSubmissionDetail(submission models.Submission) SubmissionDetail {
	return SubmissionDetail{
		SubmissionSummary: NewSubmissionSummary(submission),
		FileName:          submission.FileName,
		FileURL:           submission.FileURL,
		Content:           submission.Content,
		Feedback:          submission.Feedback,
		Suggestions:       DecodeSuggestions(submission.Suggestions),
		GradedAt:          submission.GradedAt,
	}
}

// DecodeSuggestions reads the stored JSON array, tolerating empty or invalid values.
func DecodeSuggestions(raw []byte) []string {
	suggestions := []string{}
	if len(raw) == 0 {
		return suggestions
	}
	if err := json.Unmarshal(raw, &suggestions); err != nil || suggestions == nil {
		return []string{}
	}
	return suggestions
}
