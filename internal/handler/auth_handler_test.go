package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/middleware"
	"github.com/noah-isme/homework-grader/internal/models"
)

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == middleware.SessionCookieName {
			return cookie
		}
	}
	t.Fatalf("response carried no %s cookie", middleware.SessionCookieName)
	return nil
}

func TestAuthHandlerSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, err := srv.app.Test(jsonRequest(fiber.MethodPost, "/api/register", dto.RegisterRequest{
		Username: "alice",
		Password: "secret1",
		Name:     "Alice",
		Class:    "Science",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	cookie := sessionCookie(t, resp)

	var registered struct {
		Success bool              `json:"success"`
		Data    dto.LoginResponse `json:"data"`
	}
	decodeResponse(t, resp, &registered)
	require.True(t, registered.Success)
	require.Equal(t, "alice", registered.Data.Student.Username)
	require.NotEmpty(t, registered.Data.Token)

	var stored models.Student
	require.NoError(t, srv.db.Where("username = ?", "alice").First(&stored).Error)
	require.NotEqual(t, "secret1", stored.Password)

	info := httptest.NewRequest(fiber.MethodGet, "/api/user/info", nil)
	info.AddCookie(cookie)
	resp, err = srv.app.Test(info)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var profile struct {
		Data dto.StudentProfile `json:"data"`
	}
	decodeResponse(t, resp, &profile)
	require.Equal(t, "Science", profile.Data.Class)

	logout := httptest.NewRequest(fiber.MethodPost, "/api/logout", nil)
	logout.AddCookie(cookie)
	resp, err = srv.app.Test(logout)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	info = httptest.NewRequest(fiber.MethodGet, "/api/user/info", nil)
	info.AddCookie(cookie)
	resp, err = srv.app.Test(info)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var denied envelope
	decodeResponse(t, resp, &denied)
	require.False(t, denied.Success)
	require.Equal(t, middleware.MessageLoginRequired, denied.Message)
}

func TestAuthHandlerRejectsDuplicateUsername(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	payload := dto.RegisterRequest{Username: "bob", Password: "secret1", Name: "Bob", Class: "Arts"}

	resp, err := srv.app.Test(jsonRequest(fiber.MethodPost, "/api/register", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = srv.app.Test(jsonRequest(fiber.MethodPost, "/api/register", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, "username already registered", body.Message)
}

func TestAuthHandlerRegistrationValidation(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, err := srv.app.Test(jsonRequest(fiber.MethodPost, "/api/register", dto.RegisterRequest{
		Username: "ab",
		Password: "123",
		Name:     "Short",
		Class:    "Arts",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body envelope
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, "username must be at least 3 characters; password must be at least 6 characters", body.Message)
	require.NotContains(t, body.Message, "RegisterRequest")

	resp, err = srv.app.Test(jsonRequest(fiber.MethodPost, "/api/register", dto.RegisterRequest{
		Username: "a-very-long-username-indeed",
		Password: "secret1",
		Class:    "Arts",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	decodeResponse(t, resp, &body)
	require.Equal(t, "username must be at most 20 characters; name is required", body.Message)

	req := httptest.NewRequest(fiber.MethodPost, "/api/register", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err = srv.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandlerLogin(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, err := srv.app.Test(jsonRequest(fiber.MethodPost, "/api/register", dto.RegisterRequest{
		Username: "carol", Password: "secret1", Name: "Carol", Class: "Math",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = srv.app.Test(jsonRequest(fiber.MethodPost, "/api/login", dto.LoginRequest{Username: "carol", Password: "wrong-pass"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = srv.app.Test(jsonRequest(fiber.MethodPost, "/api/login", dto.LoginRequest{Username: "carol", Password: "secret1"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sessionCookie(t, resp)

	var body map[string]json.RawMessage
	decodeResponse(t, resp, &body)
	require.Contains(t, string(body["data"]), `"token"`)
}

func TestClassHandlerListsClasses(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	require.NoError(t, srv.db.Create(&models.Class{Major: "Science", Teacher: "Mr. Lee"}).Error)

	resp, err := srv.app.Test(httptest.NewRequest(fiber.MethodGet, "/api/classes", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.ClassResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "Mr. Lee", body.Data[0].Teacher)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp, err := srv.app.Test(httptest.NewRequest(fiber.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Test", resp.Header.Get("X-Application"))
}
