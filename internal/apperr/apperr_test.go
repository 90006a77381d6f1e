package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsThroughWrapping(t *testing.T) {
	base := NotFound("User not found")
	wrapped := fmt.Errorf("load profile: %w", base)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "User not found", got.Message)
	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
}

func TestStatusOfUnknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(cause, http.StatusBadRequest, "Role key already exists")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Role key already exists: duplicate key", err.Error())
}

func TestWithDataCopies(t *testing.T) {
	base := BadRequest("invalid")
	withData := base.WithData(map[string]string{"field": "email"})
	assert.Nil(t, base.Data)
	assert.NotNil(t, withData.Data)
	assert.Equal(t, http.StatusUnauthorized, Unauthenticated().Status)
	assert.Equal(t, "User not authenticated", Unauthenticated().Message)
}
