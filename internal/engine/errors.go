package engine

import (
	"errors"
	"fmt"
)

// ErrDestroyed is returned by commands issued against a destroyed engine.
var ErrDestroyed = errors.New("engine destroyed")

// OptionsError reports options an engine refuses at construction or render.
type OptionsError struct {
	// Field names the offending option ("width", "data.nodes[2].id").
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid options: %s: %s", e.Field, e.Message)
}

// IsOptionsError returns true if err is (or wraps) an OptionsError.
func IsOptionsError(err error) bool {
	var oe *OptionsError
	return errors.As(err, &oe)
}
