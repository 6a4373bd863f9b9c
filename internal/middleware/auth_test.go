package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAuth_IssueAndParse(t *testing.T) {
	_, rdb := newRedis(t)
	a := NewAuth(testSecret, rdb)

	tok, err := a.IssueToken(42, "ana@example.com")
	require.NoError(t, err)

	claims, err := a.Parse(context.Background(), tok)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestAuth_RejectsForeignTokens(t *testing.T) {
	a := NewAuth(testSecret, nil)

	other, err := NewAuth("another-secret-that-is-32-characters!", nil).IssueToken(1, "x@example.com")
	require.NoError(t, err)
	_, err = a.Parse(context.Background(), other)
	assert.Error(t, err)

	// right key, wrong issuer
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "someone-else",
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = a.Parse(context.Background(), raw)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestAuth_Expired(t *testing.T) {
	a := NewAuth(testSecret, nil)
	tok, err := a.IssueToken(1, "x@example.com")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(DefaultTokenTTL + time.Minute) }
	_, err = a.Parse(context.Background(), tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuth_Revoke(t *testing.T) {
	mr, rdb := newRedis(t)
	a := NewAuth(testSecret, rdb)
	ctx := context.Background()

	tok, err := a.IssueToken(7, "bo@example.com")
	require.NoError(t, err)
	claims, err := a.Parse(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, a.Revoke(ctx, claims))
	_, err = a.Parse(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	ttl := mr.TTL(revokedKey(claims.ID))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, DefaultTokenTTL)
}

func TestAuth_RevokeWithoutRedisIsNoop(t *testing.T) {
	a := NewAuth(testSecret, nil)
	assert.NoError(t, a.Revoke(context.Background(), &Claims{}))
}

func TestRequired(t *testing.T) {
	a := NewAuth(testSecret, nil)
	app := fiber.New()
	app.Get("/me", a.Required(), func(c *fiber.Ctx) error {
		id, _ := c.Locals("userID").(uint)
		ctxID, _ := c.UserContext().Value(UserIDKey).(uint)
		if id != 9 || ctxID != 9 {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	tok, err := a.IssueToken(9, "c@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
