package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRateLimiter(rdb, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "join_request", "user:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, "join_request", "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// other callers have their own window
	ok, err = l.Allow(ctx, "join_request", "user:2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, "join_request", "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_DisabledAllowsEverything(t *testing.T) {
	l := NewRateLimiter(nil, false)
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "signup", "ip:1", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	_, rdb := newRedis(t)

	tests := []struct {
		name    string
		limiter *RateLimiter
		policy  FailPolicy
		want    []int
	}{
		{"limits", NewRateLimiter(rdb, true), FailOpen, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}},
		{"no redis fails open", NewRateLimiter(nil, true), FailOpen, []int{http.StatusOK, http.StatusOK, http.StatusOK}},
		{"no redis fails closed", NewRateLimiter(nil, true), FailClosed, []int{http.StatusServiceUnavailable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/x", tt.limiter.Limit(tt.name, 2, time.Minute, tt.policy), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})
			for i, want := range tt.want {
				resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/x", nil), -1)
				require.NoError(t, err)
				_ = resp.Body.Close()
				assert.Equal(t, want, resp.StatusCode, "request %d", i+1)
			}
		})
	}
}
