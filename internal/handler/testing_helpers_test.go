package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/config"
	"github.com/noah-isme/homework-grader/internal/handler"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/repository"
	"github.com/noah-isme/homework-grader/internal/router"
	"github.com/noah-isme/homework-grader/internal/service"
	"github.com/noah-isme/homework-grader/internal/storage"
	"github.com/noah-isme/homework-grader/pkg/ai"
)

const testJWTSecret = "handler-test-secret"

type envelope struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Data           json.RawMessage `json:"data"`
	Meta           json.RawMessage `json:"meta"`
	RecordID       uint            `json:"record_id"`
	GradingOutcome string          `json:"grading_outcome"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

type graderFunc func(ctx context.Context, content string) ai.GradeResult

func (f graderFunc) Grade(ctx context.Context, content string) ai.GradeResult {
	return f(ctx, content)
}

type responderFunc func(ctx context.Context, message string) (string, error)

func (f responderFunc) Reply(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// switchableGrader lets a test change the grading result between requests.
type switchableGrader struct {
	mu     sync.Mutex
	result ai.GradeResult
}

func (g *switchableGrader) Set(result ai.GradeResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = result
}

func (g *switchableGrader) Grade(context.Context, string) ai.GradeResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

func gradedResult(score float64) ai.GradeResult {
	return ai.GradeResult{
		Score:       score,
		Feedback:    "Clear structure and correct answers.",
		Suggestions: []string{"Cite your sources"},
		Outcome:     ai.OutcomeGraded,
	}
}

func unavailableResult() ai.GradeResult {
	return ai.GradeResult{Feedback: ai.UnavailableFeedback, Outcome: ai.OutcomeUnavailable}
}

type testServer struct {
	app      *fiber.App
	db       *gorm.DB
	store    *storage.Local
	tokens   *middleware.TokenIssuer
	grader   *switchableGrader
	chatFunc responderFunc
}

type serverOptions struct {
	uploadLimit fiber.Handler
	chat        responderFunc
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Class{}, &models.Student{}, &models.Submission{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	store, err := storage.NewLocal(t.TempDir(), logger)
	require.NoError(t, err)

	grader := &switchableGrader{result: gradedResult(88)}
	chat := opts.chat
	if chat == nil {
		chat = func(_ context.Context, message string) (string, error) {
			return "echo: " + message, nil
		}
	}

	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	authService := service.NewAuthService(studentRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(submissionRepo, nil, time.Minute, logger)
	submissionService := service.NewSubmissionService(service.SubmissionServiceConfig{
		Submissions: submissionRepo,
		Store:       store,
		Grader:      grader,
		Stats:       analyticsService,
		Validator:   validate,
		MaxBytes:    1024 * 1024,
		Logger:      logger,
	})

	sessions := middleware.NewSessionStore(time.Hour, false)
	tokens := middleware.NewTokenIssuer(testJWTSecret, time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: router.ErrorHandler, BodyLimit: 2 * 1024 * 1024})
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test"}, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, sessions, tokens, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, logger),
		ChatHandler:       handler.NewChatHandler(service.NewChatService(chat, validate, logger), logger),
		ClassHandler:      handler.NewClassHandler(service.NewClassService(repository.NewClassRepository(db), logger), logger),
		Sessions:          sessions,
		Tokens:            tokens,
		UploadLimit:       opts.uploadLimit,
	})

	return &testServer{app: app, db: db, store: store, tokens: tokens, grader: grader, chatFunc: chat}
}

func (s *testServer) seedStudent(t *testing.T, username string) (models.Student, string) {
	t.Helper()
	student := models.Student{Username: username, Password: "hash", Name: "Student " + username, Class: "CS-1"}
	require.NoError(t, s.db.Create(&student).Error)
	token, _, err := s.tokens.Issue(student.ID)
	require.NoError(t, err)
	return student, token
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func authorize(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func uploadRequest(t *testing.T, fileName string, payload []byte, docType string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if docType != "" {
		require.NoError(t, writer.WriteField("doc_type", docType))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload_homework", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
