package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer   = "podshare-api"
	tokenAudience = "podshare-client"
	// DefaultTokenTTL is how long issued access tokens stay valid.
	DefaultTokenTTL = 24 * time.Hour
)

// ErrTokenRevoked is returned for tokens whose jti was revoked at logout.
var ErrTokenRevoked = errors.New("token has been revoked")

// Claims are the JWT claims podshare issues.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

// Auth issues and verifies access tokens. Revocations live in Redis when a
// client is configured.
type Auth struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

// NewAuth builds an Auth signing with secret.
func NewAuth(secret string, rdb *redis.Client) *Auth {
	return &Auth{secret: []byte(secret), ttl: DefaultTokenTTL, rdb: rdb, now: time.Now}
}

// IssueToken signs a token for the user.
func (a *Auth) IssueToken(userID uint, email string) (string, error) {
	now := a.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies signature, issuer, audience, expiry and revocation.
func (a *Auth) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}

	if a.rdb != nil && claims.ID != "" {
		n, err := a.rdb.Exists(ctx, revokedKey(claims.ID)).Result()
		if err == nil && n > 0 {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke blacklists the token's jti until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, claims *Claims) error {
	if a.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(a.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return a.rdb.Set(ctx, revokedKey(claims.ID), "1", ttl).Err()
}

func revokedKey(jti string) string {
	return "jwt:revoked:" + jti
}

// Required rejects requests without a valid bearer token and stores the
// user id in c.Locals("userID") and the claims in c.Locals("claims").
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if header == "" || !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
				"code":  "UNAUTHORIZED",
			})
		}

		claims, err := a.Parse(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  "UNAUTHORIZED",
			})
		}
		userID, err := claims.UserID()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid user ID in token",
				"code":  "UNAUTHORIZED",
			})
		}

		c.Locals("userID", userID)
		c.Locals("claims", claims)
		c.SetUserContext(WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}
