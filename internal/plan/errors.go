package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a missing plan file or task reference.
	ErrNotFound = errors.New("not found")
	// ErrParse marks a plan file whose content is not a task list.
	ErrParse = errors.New("plan file malformed")
	// ErrValidation marks rejected task fields (bad time, end<=start, past start).
	ErrValidation = errors.New("validation failed")
)

// ConflictError reports overlapping time windows. It names the conflicting
// task titles so the caller can decide whether to force the change.
type ConflictError struct {
	Titles []string
}

func (e *ConflictError) Error() string {
	return "conflicts with: " + strings.Join(e.Titles, ", ")
}

// AsConflict extracts a ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
