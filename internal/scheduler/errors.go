package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWorkers is returned by Execute when maxWorkers is less than 1.
var ErrInvalidWorkers = errors.New("max workers must be at least 1")

// DuplicateIDError reports two specs sharing the same key.
type DuplicateIDError struct {
	ID TaskID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task key %v", e.ID.Key)
}

// UnknownDependencyError reports an effective dependency whose key matches no
// spec in the input set.
type UnknownDependencyError struct {
	From    TaskID
	Missing any
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task key %v", e.From, e.Missing)
}

// CycleError reports a dependency cycle. Path holds the ordered cycle, with
// the first task repeated at the end.
type CycleError struct {
	Path []TaskID
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Path))
	for _, id := range e.Path {
		parts = append(parts, fmt.Sprintf("%v", id.Key))
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, " -> "))
}
