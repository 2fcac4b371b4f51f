package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDuration    = errors.New("task duration must be greater than zero")
	ErrEmptyText          = errors.New("task text is empty")
	ErrSchedulingConflict = errors.New("scheduling conflict")
	ErrDraftPending       = errors.New("draft conflicts not evaluated yet")
)

// ConflictError is returned when a scheduled draft overlaps pending tasks.
// Conflicts are in store display order (newest first). Nothing was
// committed or removed.
type ConflictError struct {
	Conflicts []Task
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Conflicts))
	for _, t := range e.Conflicts {
		names = append(names, fmt.Sprintf("%q", t.Text))
	}
	return fmt.Sprintf("%s: time slot occupied by %s", ErrSchedulingConflict, strings.Join(names, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrSchedulingConflict }

// IDs returns the conflicting task ids, ready for Store.Overwrite.
func (e *ConflictError) IDs() []string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, t := range e.Conflicts {
		ids = append(ids, t.ID)
	}
	return ids
}
