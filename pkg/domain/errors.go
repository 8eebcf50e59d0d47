package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidTransition is returned when an operation is not allowed in the current phase.
// The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid wizard transition")

// ErrStaleGeneration is returned when an asynchronous task completes after the
// session has moved on (reset, new upload) since the task was scheduled.
var ErrStaleGeneration = errors.New("stale state generation")

// Upload rejections. None of them changes the wizard phase.
var (
	ErrNotAnImage      = errors.New("file is not an image")
	ErrImageTooLarge   = errors.New("image exceeds maximum allowed size")
	ErrEmptyImage      = errors.New("image file is empty")
	ErrContentMismatch = errors.New("file content does not match declared image type")
)

// ErrAnalysisPending is returned when completion is attempted before the
// analysis delay has elapsed.
var ErrAnalysisPending = errors.New("analysis still in progress")

// RejectionReason returns a short label for an upload rejection error.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotAnImage):
		return "not_an_image"
	case errors.Is(err, ErrImageTooLarge):
		return "too_large"
	case errors.Is(err, ErrEmptyImage):
		return "empty"
	case errors.Is(err, ErrContentMismatch):
		return "content_mismatch"
	case errors.Is(err, ErrInvalidTransition):
		return "wrong_phase"
	}
	return "other"
}
