package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpError_IsKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap("sessions.Create", ErrorInternal, cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrorInternal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "sessions.Create: internal error: connection reset", err.Error())
}

func TestWrap_NilCause(t *testing.T) {
	assert.NoError(t, Wrap("op", ErrorInternal, nil))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain kind", ErrorConflict, ErrorConflict},
		{"op error", E("auth.Login", ErrorForbidden, "account is deactivated"), ErrorForbidden},
		{"wrapped", fmt.Errorf("outer: %w", ErrorTooManyRequests), ErrorTooManyRequests},
		{"token", fmt.Errorf("verify: %w", ErrInvalidToken), ErrInvalidToken},
		{"unknown", errors.New("boom"), ErrorInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "email not verified", Message(E("auth.RequireVerifiedEmail", ErrorForbidden, "email not verified")))
	assert.Equal(t, "unauthorized", Message(fmt.Errorf("x: %w", ErrorUnauthorized)))
	assert.Equal(t, "internal error", Message(errors.New("hidden detail")))
}
