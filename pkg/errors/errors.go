// Package errors defines the sentinel errors shared by the builder and its
// collaborators, plus an AppError wrapper that carries a process exit code
// for the command surface.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownConcept    = errors.New("concept not in vocabulary")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSourceUnavailable = errors.New("record source unavailable")
	ErrCorruptFile       = errors.New("corrupt matrix file")
	ErrInternal          = errors.New("internal error")
	ErrPreflightFailed   = errors.New("preflight check failed")
)

// Exit codes returned by the builder command.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitData        = 3
	ExitUnavailable = 4
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps an error returned by a build to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, ErrUnknownConcept), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrCorruptFile):
		return ExitData
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrPreflightFailed):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under the name "errors" keep access to them.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
