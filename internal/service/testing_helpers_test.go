package service

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/repository"
	"github.com/noah-isme/homework-grader/internal/storage"
	"github.com/noah-isme/homework-grader/pkg/ai"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Class{}, &models.Student{}, &models.Submission{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, username string) models.Student {
	t.Helper()
	student := models.Student{Username: username, Password: "hash", Name: "Student " + username, Class: "CS-1"}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func newFileHeader(t *testing.T, name string, payload []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

type stubGrader struct {
	mu    sync.Mutex
	calls int
	grade func(ctx context.Context, content string) ai.GradeResult
}

func (g *stubGrader) Grade(ctx context.Context, content string) ai.GradeResult {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.grade(ctx, content)
}

func (g *stubGrader) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fixedGrade(score float64, feedback string, suggestions ...string) func(context.Context, string) ai.GradeResult {
	return func(context.Context, string) ai.GradeResult {
		return ai.GradeResult{Score: score, Feedback: feedback, Suggestions: suggestions, Outcome: ai.OutcomeGraded}
	}
}

func unavailableGrade(context.Context, string) ai.GradeResult {
	return ai.GradeResult{Feedback: ai.UnavailableFeedback, Suggestions: []string{}, Outcome: ai.OutcomeUnavailable}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []GradeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event GradeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []GradeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]GradeEvent(nil), p.events...)
}

type pipelineFixture struct {
	db        *gorm.DB
	store     *storage.Local
	grader    *stubGrader
	events    *recordingPublisher
	service   SubmissionService
	analytics AnalyticsService
}

func newPipelineFixture(t *testing.T, grader ai.Grader) pipelineFixture {
	t.Helper()

	db := newServiceTestDB(t)
	store, err := storage.NewLocal(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	repo := repository.NewSubmissionRepository(db)
	events := &recordingPublisher{}
	analytics := NewAnalyticsService(repo, nil, 0, zerolog.Nop())

	svc := NewSubmissionService(SubmissionServiceConfig{
		Submissions: repo,
		Store:       store,
		Grader:      grader,
		Events:      events,
		Stats:       analytics,
		Validator:   validator.New(),
		MaxBytes:    1024 * 1024,
		Logger:      zerolog.Nop(),
	})

	stub, _ := grader.(*stubGrader)
	return pipelineFixture{db: db, store: store, grader: stub, events: events, service: svc, analytics: analytics}
}
