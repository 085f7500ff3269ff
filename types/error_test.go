package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrInvalidState, "handoff already resolved")
	assert.Equal(t, "[INVALID_STATE] handoff already resolved", err.Error())

	cause := errors.New("row not updated")
	err = err.WithCause(cause)
	assert.Contains(t, err.Error(), "row not updated")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Builders(t *testing.T) {
	err := NewErrorf(ErrValidation, "choice %q not in options", "maybe").
		WithHTTPStatus(400).
		WithRetryable(false)

	assert.Equal(t, ErrValidation, err.Code)
	assert.Equal(t, 400, err.HTTPStatus)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Message, `"maybe"`)
}

func TestGetErrorCode_Wrapped(t *testing.T) {
	inner := NewError(ErrAgentUnavailable, "agent not idle")
	wrapped := fmt.Errorf("assign task: %w", inner)

	assert.Equal(t, ErrAgentUnavailable, GetErrorCode(wrapped))
	assert.True(t, IsCode(wrapped, ErrAgentUnavailable))
	assert.False(t, IsCode(wrapped, ErrNotFound))
}

func TestGetErrorCode_Plain(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	err := NewError(ErrInternalError, "storage down").WithRetryable(true)
	require.True(t, IsRetryable(err))
	require.True(t, IsRetryable(fmt.Errorf("wrap: %w", err)))
}
