package domain

import (
	"errors"
	"fmt"
)

// Not-found sentinels. These map to a 404 at the HTTP boundary and are never
// retried.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrExerciseNotFound = errors.New("exercise not found")
)

// MissingFieldError reports a request that omits a field its kind requires.
// Maps to a 400 at the HTTP boundary.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// IsClientError reports whether err should be surfaced to the caller as a
// client fault rather than a server fault.
func IsClientError(err error) bool {
	var mf *MissingFieldError
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrLessonNotFound) ||
		errors.Is(err, ErrExerciseNotFound) ||
		errors.As(err, &mf)
}
