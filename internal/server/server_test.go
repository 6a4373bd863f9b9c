package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"podshare/internal/config"
	"podshare/internal/models"
	"podshare/internal/repository"
	"podshare/internal/repository/memory"
	"podshare/internal/repository/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv   *Server
	app   *fiber.App
	store repository.Store
	redis *redis.Client
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		JWTSecret:      "test-secret-that-is-at-least-32-characters",
		AllowedOrigins: "http://localhost:5173",
		FeatureFlags:   "pod_cache=on",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.NewStore()
	srv, err := NewServer(testConfig(), Deps{Store: store, Redis: rdb})
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.App(), store: store, redis: rdb}
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := e.srv.auth.IssueToken(u.ID, u.Email)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func errorCode(t *testing.T, raw []byte) string {
	return decode[models.ErrorResponse](t, raw).Code
}

func podBody(title string, spots int) fiber.Map {
	return fiber.Map{
		"club_name":             "Bay Club Courtside",
		"region":                "South Bay",
		"address":               "14603 Blossom Hill Rd",
		"membership_type":       "Family",
		"title":                 title,
		"description":           "shared family membership",
		"cost_per_person_cents": 12500,
		"total_spots":           spots,
		"amenities":             []string{"Pool", "sauna"},
	}
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(testConfig(), Deps{})
	require.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	e := newTestEnv(t)

	status, _ := e.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := e.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	checks := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, body)
	assert.Equal(t, "healthy", checks.Status)
	assert.Equal(t, "memory", checks.Checks["database"])
	assert.Equal(t, "healthy", checks.Checks["redis"])
}

func TestReadiness_FailsWhenDatabaseDown(t *testing.T) {
	srv, err := NewServer(testConfig(), Deps{
		Store: memory.NewStore(),
		Ping:  func(_ context.Context) error { return assert.AnError },
	})
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuthFlow_SignupLoginLogout(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name": "Dana", "email": "Dana@Example.com", "password": "Password123!pod",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	signup := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, body)
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, "dana@example.com", signup.User.Email)
	assert.NotContains(t, string(body), "password")

	status, body = e.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name": "Dana", "email": "dana@example.com", "password": "Password123!pod",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, body))

	status, body = e.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "dana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthorized, errorCode(t, body))

	status, body = e.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "dana@example.com", "password": "Password123!pod",
	})
	require.Equal(t, http.StatusOK, status)
	token := decode[struct {
		Token string `json:"token"`
	}](t, body).Token

	status, body = e.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, signup.User.ID, decode[models.User](t, body).ID)

	status, _ = e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodPost, "/api/pods", "", podBody("Swim", 2))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthorized, errorCode(t, body))

	status, _ = e.do(t, http.MethodGet, "/api/join-requests/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestInvalidIDParam(t *testing.T) {
	e := newTestEnv(t)
	u := storetest.SeedUser(t, e.store, "lee")

	status, body := e.do(t, http.MethodGet, "/api/pods/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, body).Error)

	status, body = e.do(t, http.MethodDelete, "/api/pods/1/members/0", e.token(t, u), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid user ID", decode[models.ErrorResponse](t, body).Error)
}

func TestHumanizeParam(t *testing.T) {
	tests := map[string]string{
		"id":            "ID",
		"userId":        "user ID",
		"joinRequestId": "join request ID",
		"slug":          "slug",
	}
	for in, want := range tests {
		assert.Equal(t, want, humanizeParam(in), in)
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"pool", "sauna"}, splitList("pool, ,sauna,"))
}
