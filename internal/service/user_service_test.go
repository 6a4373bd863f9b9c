package service

import (
	"context"
	"testing"

	"podshare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	svc := NewUserService(newMemoryStore().Users(), bcrypt.MinCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: " Ana ", Email: "ANA@example.com", Password: "SecurePass12!"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEqual(t, "SecurePass12!", user.Password)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana 2", Email: "ana@example.com", Password: "SecurePass12!"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err), "email taken")

	_, err = svc.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "weak"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@", Password: "SecurePass12!"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	got, err := svc.Authenticate(ctx, "ana@example.com", "SecurePass12!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@example.com", "WrongPass12!")
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	_, err = svc.Authenticate(ctx, "nobody@example.com", "SecurePass12!")
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}
