package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewNotFoundError("Pod", 1), http.StatusNotFound},
		{NewDuplicateRequestError(1, 2), http.StatusConflict},
		{NewPodFullError(1), http.StatusConflict},
		{NewInvalidStateError("decided"), http.StatusConflict},
		{NewForbiddenError("nope"), http.StatusForbidden},
		{NewUnauthorizedError("login"), http.StatusUnauthorized},
		{NewInternalError(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestErrorCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("accept: %w", NewPodFullError(7))
	assert.True(t, IsPodFull(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, CodePodFull, ErrorCode(err))
	assert.Equal(t, "", ErrorCode(errors.New("x")))
}
