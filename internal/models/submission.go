package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DocType discriminates the kind of document a submission carries.
type DocType string

const (
	// DocTypeHomework is a regular homework upload.
	DocTypeHomework DocType = "homework"
	// DocTypeTest is a test paper upload.
	DocTypeTest DocType = "test"
	// DocTypeExam is an exam paper upload.
	DocTypeExam DocType = "exam"
)

// DocTypes lists every supported document type in display order.
var DocTypes = []DocType{DocTypeHomework, DocTypeTest, DocTypeExam}

// ParseDocType normalises the raw form value. An empty value means homework.
func ParseDocType(raw string) (DocType, error) {
	value := DocType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return DocTypeHomework, nil
	}
	for _, known := range DocTypes {
		if value == known {
			return value, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", raw)
}

const (
	// SubmissionStatusPending marks a placeholder awaiting a grade.
	SubmissionStatusPending = "pending"
	// SubmissionStatusCompleted marks a graded submission.
	SubmissionStatusCompleted = "completed"
)

// Submission is one uploaded homework, test or exam and its grading outcome.
type Submission struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	StudentID      uint           `gorm:"not null;index" json:"student_id"`
	DocType        DocType        `gorm:"column:doc_type;size:16;not null;index" json:"doc_type"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	FileName       string         `gorm:"size:255;not null" json:"file_name"`
	FileURL        string         `gorm:"size:512" json:"file_url"`
	Content        string         `gorm:"type:text" json:"-"`
	ContentSummary string         `gorm:"size:500" json:"content_summary"`
	SubmitTime     time.Time      `gorm:"not null;index" json:"submit_time"`
	Score          *float64       `gorm:"type:decimal(5,2)" json:"score"`
	Feedback       *string        `gorm:"type:text" json:"feedback"`
	Suggestions    datatypes.JSON `gorm:"type:json" json:"-"`
	Status         string         `gorm:"size:20;not null;default:pending;index" json:"status"`
	GradedAt       *time.Time     `json:"graded_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsGraded reports whether the submission carries its final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusCompleted && s.Score != nil && s.Feedback != nil
}
