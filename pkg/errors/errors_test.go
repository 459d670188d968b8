package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", fmt.Errorf("loading: %w", ErrInvalidConfig), ExitConfig},
		{"unknown concept", fmt.Errorf("person p1: %w", ErrUnknownConcept), ExitData},
		{"corrupt file", ErrCorruptFile, ExitData},
		{"bad input", ErrInvalidInput, ExitData},
		{"source", fmt.Errorf("page 3: %w", ErrSourceUnavailable), ExitUnavailable},
		{"preflight", ErrPreflightFailed, ExitUnavailable},
		{"other", errors.New("boom"), ExitFailure},
		{"app error wins", fmt.Errorf("wrapped: %w", New(ErrInvalidInput, 7, "custom")), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestAppError(t *testing.T) {
	err := Newf(ErrUnknownConcept, ExitData, "concept %d", 42)
	assert.Equal(t, "concept not in vocabulary: concept 42", err.Error())
	assert.True(t, Is(err, ErrUnknownConcept))

	var appErr *AppError
	assert.True(t, As(fmt.Errorf("outer: %w", err), &appErr))
	assert.Equal(t, ExitData, appErr.ExitCode)
}
