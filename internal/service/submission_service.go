package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/observability"
	"github.com/noah-isme/homework-grader/internal/repository"
	"github.com/noah-isme/homework-grader/internal/storage"
	"github.com/noah-isme/homework-grader/pkg/ai"
	"github.com/noah-isme/homework-grader/pkg/docx"
)

const (
	contentSummaryLength = 200
	defaultPerPage       = 10
	maxPerPage           = 100
)

var (
	// ErrFileRequired indicates the multipart form carried no file.
	ErrFileRequired = errors.New("no file uploaded")
	// ErrEmptyFileName indicates the file part has no name.
	ErrEmptyFileName = errors.New("no file selected")
	// ErrUnsupportedFileType indicates the extension or content is not a Word document.
	ErrUnsupportedFileType = errors.New("only .doc and .docx files are allowed")
	// ErrFileTooLarge indicates the payload exceeded the configured limit.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrInvalidDocType indicates doc_type is not homework, test or exam.
	ErrInvalidDocType = errors.New("doc_type must be one of homework, test, exam")
	// ErrUnreadableDocument indicates the text could not be extracted.
	ErrUnreadableDocument = errors.New("document could not be read, please upload a valid .docx file")
	// ErrEmptyDocument indicates the extracted text is blank.
	ErrEmptyDocument = errors.New("document content is empty")
	// ErrSubmissionNotFound indicates no submission with that id belongs to the student.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAlreadyGraded indicates the submission is no longer pending.
	ErrAlreadyGraded = errors.New("submission already graded")
)

var allowedExtensions = map[string]struct{}{".doc": {}, ".docx": {}}

// DocumentStore persists uploaded documents.
type DocumentStore interface {
	Save(ctx context.Context, originalName string, payload []byte) (storage.StoredFile, error)
	Remove(name string) error
}

// DocumentArchiver copies stored documents to long-term storage.
type DocumentArchiver interface {
	Archive(ctx context.Context, storedName string, reader io.Reader) (string, error)
}

// StatsInvalidator drops cached analytics for a student.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, studentID uint)
}

// UploadInput is the validated form of an upload request.
type UploadInput struct {
	StudentID uint
	DocType   string
	File      *multipart.FileHeader
}

// SubmissionService runs the upload, extract, grade and persist pipeline.
type SubmissionService interface {
	Upload(ctx context.Context, input UploadInput) (dto.UploadResponse, error)
	Regrade(ctx context.Context, studentID, submissionID uint) (dto.UploadResponse, error)
	Get(ctx context.Context, studentID, submissionID uint) (dto.SubmissionDetail, error)
	List(ctx context.Context, studentID uint, query dto.SubmissionListQuery) (dto.SubmissionPage, error)
}

// SubmissionServiceConfig bundles the pipeline collaborators.
type SubmissionServiceConfig struct {
	Submissions repository.SubmissionRepository
	Store       DocumentStore
	Archiver    DocumentArchiver
	Grader      ai.Grader
	Events      GradePublisher
	Stats       StatsInvalidator
	Validator   *validator.Validate
	MaxBytes    int64
	Logger      zerolog.Logger
}

type submissionService struct {
	submissions repository.SubmissionRepository
	store       DocumentStore
	archiver    DocumentArchiver
	grader      ai.Grader
	events      GradePublisher
	stats       StatsInvalidator
	validator   *validator.Validate
	maxBytes    int64
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission pipeline.
func NewSubmissionService(cfg SubmissionServiceConfig) SubmissionService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}

	return &submissionService{
		submissions: cfg.Submissions,
		store:       cfg.Store,
		archiver:    cfg.Archiver,
		grader:      cfg.Grader,
		events:      cfg.Events,
		stats:       cfg.Stats,
		validator:   cfg.Validator,
		maxBytes:    cfg.MaxBytes,
		logger:      cfg.Logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/homework-grader/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Upload(ctx context.Context, input UploadInput) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.upload", trace.WithAttributes(
		attribute.Int("student.id", int(input.StudentID)),
		attribute.Int64("upload.max_bytes", s.maxBytes),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	docType, payload, err := s.validateUpload(input)
	if err != nil {
		s.reject(span, docType, "rejected", err)
		return dto.UploadResponse{}, err
	}

	title := strings.TrimSpace(filepath.Base(input.File.Filename))
	span.SetAttributes(attribute.String("upload.original_name", title), attribute.String("submission.doc_type", string(docType)))

	content, err := docx.ExtractTextFromReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		s.logger.Info().Err(err).Str("file_name", title).Msg("document text extraction failed")
		s.reject(span, docType, "rejected", ErrUnreadableDocument)
		return dto.UploadResponse{}, ErrUnreadableDocument
	}
	if strings.TrimSpace(content) == "" {
		s.reject(span, docType, "rejected", ErrEmptyDocument)
		return dto.UploadResponse{}, ErrEmptyDocument
	}

	stored, err := s.store.Save(ctx, title, payload)
	if err != nil {
		s.reject(span, docType, "storage_error", err)
		return dto.UploadResponse{}, fmt.Errorf("store upload: %w", err)
	}

	submission := models.Submission{
		StudentID:      input.StudentID,
		DocType:        docType,
		Title:          title,
		FileName:       stored.Name,
		FileURL:        s.archive(ctx, stored.Name, payload),
		Content:        content,
		ContentSummary: summarise(content),
		SubmitTime:     s.now().UTC(),
		Status:         models.SubmissionStatusPending,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		if removeErr := s.store.Remove(stored.Name); removeErr != nil {
			s.logger.Warn().Err(removeErr).Str("file_name", stored.Name).Msg("failed to remove orphaned upload")
		}
		s.reject(span, docType, "persistence_error", err)
		return dto.UploadResponse{}, fmt.Errorf("create submission: %w", err)
	}
	span.SetAttributes(attribute.Int("submission.id", int(submission.ID)))

	response := s.gradeAndComplete(ctx, submission)
	outcome := "graded"
	if !response.Graded() {
		outcome = "grading_failed"
	}
	observability.Uploads().WithLabelValues(string(docType), outcome).Inc()
	span.SetStatus(codes.Ok, outcome)

	s.logger.Info().
		Uint("student_id", input.StudentID).
		Uint("submission_id", submission.ID).
		Str("doc_type", string(docType)).
		Str("grading_outcome", response.GradingOutcome).
		Msg("submission processed")

	return response, nil
}

func (s *submissionService) Regrade(ctx context.Context, studentID, submissionID uint) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.regrade", trace.WithAttributes(
		attribute.Int("student.id", int(studentID)),
		attribute.Int("submission.id", int(submissionID)),
	))
	defer span.End()

	submission, err := s.load(ctx, studentID, submissionID)
	if err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	if submission.Status != models.SubmissionStatusPending {
		return dto.UploadResponse{}, ErrAlreadyGraded
	}
	if strings.TrimSpace(submission.Content) == "" {
		return dto.UploadResponse{}, ErrEmptyDocument
	}

	response := s.gradeAndComplete(ctx, submission)
	if response.GradingOutcome == GradingOutcomeConflict {
		return dto.UploadResponse{}, ErrAlreadyGraded
	}

	return response, nil
}

func (s *submissionService) Get(ctx context.Context, studentID, submissionID uint) (dto.SubmissionDetail, error) {
	submission, err := s.load(ctx, studentID, submissionID)
	if err != nil {
		return dto.SubmissionDetail{}, err
	}

	return dto.NewSubmissionDetail(submission), nil
}

func (s *submissionService) List(ctx context.Context, studentID uint, query dto.SubmissionListQuery) (dto.SubmissionPage, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.SubmissionPage{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filter := repository.SubmissionFilter{StudentID: studentID, Page: page, PageSize: perPage}
	if query.DocType != "" {
		docType, err := models.ParseDocType(query.DocType)
		if err != nil {
			return dto.SubmissionPage{}, ErrInvalidDocType
		}
		filter.DocType = &docType
	}

	submissions, total, err := s.submissions.ListByStudent(ctx, filter)
	if err != nil {
		return dto.SubmissionPage{}, fmt.Errorf("list submissions: %w", err)
	}

	return dto.SubmissionPage{
		Items:   dto.NewSubmissionSummaries(submissions),
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}, nil
}

// GradingOutcomeConflict reports that the record was graded by another request first.
const GradingOutcomeConflict = "conflict"

// gradeAndComplete grades the stored content and writes the result to the record with the
// same id. The record stays pending whenever no real grade is available.
func (s *submissionService) gradeAndComplete(ctx context.Context, submission models.Submission) dto.UploadResponse {
	response := dto.UploadResponse{
		RecordID: submission.ID,
		DocType:  submission.DocType,
		Title:    submission.Title,
		FileName: submission.FileName,
		FileURL:  submission.FileURL,
		Status:   models.SubmissionStatusPending,
	}
	defer func() {
		if s.stats != nil {
			s.stats.Invalidate(ctx, submission.StudentID)
		}
	}()

	result := s.grader.Grade(ctx, submission.Content)
	response.GradingOutcome = string(result.Outcome)
	if !result.Gradeable() {
		response.Message = result.Feedback
		s.logger.Warn().
			Uint("submission_id", submission.ID).
			Str("outcome", string(result.Outcome)).
			Msg("grading did not produce a result, submission left pending")
		return response
	}

	suggestions := result.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	encoded, err := json.Marshal(suggestions)
	if err != nil {
		encoded = []byte("[]")
	}

	gradedAt := s.now().UTC()
	update := repository.GradeUpdate{
		Score:       result.Score,
		Feedback:    result.Feedback,
		Suggestions: datatypes.JSON(encoded),
		GradedAt:    gradedAt,
	}
	if err := s.submissions.CompleteGrade(ctx, submission.ID, update); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			response.GradingOutcome = GradingOutcomeConflict
			response.Message = ErrAlreadyGraded.Error()
			return response
		}
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to store grading result")
		response.Message = "grading result could not be saved, please try again later"
		return response
	}

	response.Status = models.SubmissionStatusCompleted
	response.Correction = &dto.Correction{
		Score:       result.Score,
		Feedback:    result.Feedback,
		Suggestions: suggestions,
	}

	if s.events != nil {
		s.events.Publish(ctx, GradeEvent{
			Type:         GradeEventType,
			SubmissionID: submission.ID,
			StudentID:    submission.StudentID,
			DocType:      submission.DocType,
			Score:        result.Score,
			GradedAt:     gradedAt,
		})
	}

	return response
}

func (s *submissionService) validateUpload(input UploadInput) (models.DocType, []byte, error) {
	docType, err := models.ParseDocType(input.DocType)
	if err != nil {
		return "", nil, ErrInvalidDocType
	}

	file := input.File
	if file == nil {
		return docType, nil, ErrFileRequired
	}
	if strings.TrimSpace(file.Filename) == "" {
		return docType, nil, ErrEmptyFileName
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))]; !ok {
		return docType, nil, ErrUnsupportedFileType
	}
	if file.Size > s.maxBytes {
		return docType, nil, ErrFileTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return docType, nil, fmt.Errorf("open upload: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxBytes+1)); err != nil {
		return docType, nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(buf.Len()) > s.maxBytes {
		return docType, nil, ErrFileTooLarge
	}

	if !isWordContainer(mimetype.Detect(buf.Bytes())) {
		return docType, nil, ErrUnsupportedFileType
	}

	return docType, buf.Bytes(), nil
}

// isWordContainer accepts OOXML (zip based) and legacy OLE compound documents.
func isWordContainer(detected *mimetype.MIME) bool {
	for mime := detected; mime != nil; mime = mime.Parent() {
		if mime.Is("application/zip") || mime.Is("application/x-ole-storage") {
			return true
		}
	}
	return false
}

func (s *submissionService) archive(ctx context.Context, storedName string, payload []byte) string {
	if s.archiver == nil {
		return ""
	}

	url, err := s.archiver.Archive(ctx, storedName, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn().Err(err).Str("file_name", storedName).Msg("failed to archive upload")
		return ""
	}
	return url
}

func (s *submissionService) load(ctx context.Context, studentID, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetForStudent(ctx, submissionID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	return submission, nil
}

func (s *submissionService) reject(span trace.Span, docType models.DocType, outcome string, err error) {
	label := string(docType)
	if label == "" {
		label = "unknown"
	}
	observability.Uploads().WithLabelValues(label, outcome).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
}

func summarise(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= contentSummaryLength {
		return string(runes)
	}
	return string(runes[:contentSummaryLength])
}
