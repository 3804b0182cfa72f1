package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnresolvedErrorMessage(t *testing.T) {
	t.Parallel()

	last := fmt.Errorf("connection refused")
	err := UnresolvedError{
		Name:    "db_password",
		Source:  "vault",
		Key:     "secret/data/app#password",
		LastErr: last,
	}

	msg := err.Error()
	assert.Contains(t, msg, "db_password")
	assert.Contains(t, msg, "vault")
	assert.Contains(t, msg, "secret/data/app#password")
	assert.Contains(t, msg, "connection refused")
	assert.ErrorIs(t, err, last)
}

func TestInitializationErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("missing address")
	err := InitializationError{Source: "vault", Err: cause}

	assert.Contains(t, err.Error(), "vault")
	assert.Contains(t, err.Error(), "failed to initialize")
	assert.ErrorIs(t, err, cause)
}

func TestSourceErrorAnnotatesTimeouts(t *testing.T) {
	t.Parallel()

	err := SourceError("http", "https://example.com/value", context.DeadlineExceeded)

	var resErr ResolutionError
	require.True(t, stderrors.As(err, &resErr))
	assert.Equal(t, "http", resErr.Source)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeout_ms")
	assert.True(t, IsTimeout(err))
}

func TestSourceErrorPassesUnknownThrough(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("field 'port' not found")
	err := SourceError("file", "config.yaml#port", cause)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTimeout(err))
}

func TestValidationErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := UnresolvedError{Name: "x", Source: "env", Key: "MISSING"}
	err := ValidationError{Path: "configs/app.yaml", Err: cause}

	assert.Contains(t, err.Error(), "configs/app.yaml")
	var unresolved UnresolvedError
	assert.True(t, stderrors.As(err, &unresolved))
}

func TestConfigErrorMessage(t *testing.T) {
	t.Parallel()

	err := ConfigError{
		Field:      "cacheTimeout",
		Value:      -5,
		Message:    "must be non-negative",
		Suggestion: "set cacheTimeout to a number of seconds, e.g. 60",
	}
	assert.Contains(t, err.Error(), "cacheTimeout")
	assert.Contains(t, err.Error(), "must be non-negative")
	assert.Contains(t, err.Error(), "hint:")
}
