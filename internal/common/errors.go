// Package common defines shared sentinel errors used across the editor
// core. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository/collection-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors (split point out of range, merge members not
	// contiguous, malformed input).
	ErrValidation = errors.New("validation error")

	// ErrNoVoice means a segment has neither its own voice nor a speaker
	// default to synthesize with.
	ErrNoVoice = errors.New("no voice resolved")

	// ErrStore wraps a failure reported by a backing store; the store's
	// message is surfaced verbatim.
	ErrStore = errors.New("store error")

	// ErrBusy means an undo/redo is already being applied.
	ErrBusy = errors.New("operation already in progress")
)

// Normalize converts an arbitrary recovered/returned value into an error.
// Non-error values (a plain string, an int) become a generic descriptive
// message instead of being surfaced raw.
func Normalize(v any) error {
	switch e := v.(type) {
	case nil:
		return nil
	case error:
		return e
	default:
		return fmt.Errorf("unexpected failure: %v", e)
	}
}
