// Package apperr defines the error kinds shared by the library core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound marks a missing library, asset or tag.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks arguments that fail the core's shape checks.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIO marks filesystem read/write failures.
	ErrIO = errors.New("io failure")
	// ErrDecode marks corrupt or non-image bytes where an image was expected.
	ErrDecode = errors.New("decode failure")
	// ErrProvider marks any failure of the AI collaborator.
	ErrProvider = errors.New("provider error")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IO wraps err as an ErrIO failure while keeping the original cause reachable.
func IO(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func Decode(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, what, err)
}

func Provider(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrProvider, op)
	}
	if errors.Is(err, ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}

// HTTPStatus maps an error kind to the status code used by the HTTP surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
