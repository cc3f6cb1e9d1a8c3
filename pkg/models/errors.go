package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for core operations. Callers classify failures with
// errors.Is; the transport layer maps them onto response codes.
var (
	// ErrNotFound indicates an unknown job, epic, story, or test identifier.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest indicates a malformed payload, unknown stage name,
	// or missing prerequisite state.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrGeneratorFailure indicates the external generator exhausted its
	// retry budget or returned unusable output.
	ErrGeneratorFailure = errors.New("generator failure")
	// ErrCascadeConflict indicates dangling or inconsistent artifact
	// references were observed during a cascade. This should not occur if
	// store invariants hold.
	ErrCascadeConflict = errors.New("cascade conflict")
)

// NotFoundf returns an error wrapping ErrNotFound with a formatted detail.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalidRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// InvalidRequestf returns an error wrapping ErrInvalidRequest with a
// formatted detail.
func InvalidRequestf(format string, args ...interface{}) error {
	return invalidRequestf(format, args...)
}

// GeneratorFailuref returns an error wrapping ErrGeneratorFailure with a
// formatted detail.
func GeneratorFailuref(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGeneratorFailure, fmt.Sprintf(format, args...))
}

// CascadeConflictf returns an error wrapping ErrCascadeConflict with a
// formatted detail.
func CascadeConflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCascadeConflict, fmt.Sprintf(format, args...))
}
