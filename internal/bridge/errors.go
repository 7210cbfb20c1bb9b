package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrUsedOutsideProvider is returned by Use when the context carries no
	// mounted graph. It marks a programming error in the calling component.
	ErrUsedOutsideProvider = errors.New("bridge: graph context used outside of a mounted graph provider")

	// ErrAlreadyMounted is returned by Mount on a controller that is live.
	ErrAlreadyMounted = errors.New("bridge: controller is already mounted")

	// ErrNotMounted is returned by Controller.Reconfigure when no mount is live.
	ErrNotMounted = errors.New("bridge: controller is not mounted")
)

// ConstructError reports an engine factory failure. Nothing was bound or
// published for the failed mount.
type ConstructError struct {
	// GraphID is the identifier the mount would have used.
	GraphID string

	// Err is the factory error, or a recovered panic.
	Err error
}

// Error implements the error interface.
func (e *ConstructError) Error() string {
	return fmt.Sprintf("bridge: construct engine for graph %q: %v", e.GraphID, e.Err)
}

// Unwrap returns the underlying factory error.
func (e *ConstructError) Unwrap() error {
	return e.Err
}

// IsConstructError returns true if err is (or wraps) a ConstructError.
func IsConstructError(err error) bool {
	var ce *ConstructError
	return errors.As(err, &ce)
}

// ChildMountError reports a descendant component that failed to mount. The
// graph was torn down before the error was returned.
type ChildMountError struct {
	// Index is the position of the child in the controller's child list.
	Index int

	Err error
}

// Error implements the error interface.
func (e *ChildMountError) Error() string {
	return fmt.Sprintf("bridge: mount child %d: %v", e.Index, e.Err)
}

// Unwrap returns the child's error.
func (e *ChildMountError) Unwrap() error {
	return e.Err
}
