package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("repo: %w", ErrNotFound)

	appErr := FromError(wrapped)

	require.NotNil(t, appErr)
	assert.Equal(t, ErrNotFound.Code, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestWithDetailCopiesAndMatches(t *testing.T) {
	cause := errors.New("end before start")
	appErr := WithDetail(ErrInvalidInput, "empty_date_range", "end_date before start_date", cause)

	assert.Equal(t, "empty_date_range", appErr.Kind)
	assert.Equal(t, "end_date before start_date", appErr.Detail)
	assert.Empty(t, ErrInvalidInput.Kind, "predefined error must not be mutated")
	assert.ErrorIs(t, appErr, ErrInvalidInput)
	assert.ErrorIs(t, appErr, cause)
	assert.False(t, errors.Is(appErr, ErrSnapshot))
}

func TestCloneOverridesMessage(t *testing.T) {
	clone := Clone(ErrNotFound, "timetable not found")

	assert.Equal(t, "timetable not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Nil(t, Clone(nil, "x"))
}
