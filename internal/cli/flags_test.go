package cli

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ideaforge/fab/internal/errors"
)

func TestIsValidOutputFormat(t *testing.T) {
	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("yaml"))
	assert.False(t, IsValidOutputFormat(""))
	assert.False(t, IsValidOutputFormat("JSON"))
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{
			name: "nil error",
			err:  nil,
			code: ExitSuccess,
		},
		{
			name: "invalid output format",
			err:  fmt.Errorf("wrapped: %w", errors.ErrInvalidOutputFormat),
			code: ExitInvalidInput,
		},
		{
			name: "type mismatch is caller error",
			err:  fmt.Errorf("prd stage requires a idea: %w", errors.ErrTypeMismatch),
			code: ExitInvalidInput,
		},
		{
			name: "empty value is caller error",
			err:  fmt.Errorf("idea content %w", errors.ErrEmptyValue),
			code: ExitInvalidInput,
		},
		{
			name: "cobra unknown flag",
			err:  stderrors.New("unknown flag: --frobnicate"),
			code: ExitInvalidInput,
		},
		{
			name: "cobra missing required flag",
			err:  stderrors.New(`required flag(s) "writable" not set`),
			code: ExitInvalidInput,
		},
		{
			name: "not found is a runtime error",
			err:  fmt.Errorf("artifact 'idea-000000000000': %w", errors.ErrNotFound),
			code: ExitError,
		},
		{
			name: "sandbox failure is a runtime error",
			err:  errors.ErrNonZeroExit,
			code: ExitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCodeForError(tt.err))
		})
	}
}
