package scheduler

import (
	"context"
	"fmt"
)

// TaskID identifies a task within one graph. Equality is by Key alone: Key
// must be a comparable value (it is used as a map key), and it must be unique
// across all specs handed to Build. Label is a human-readable description and
// may repeat across tasks.
type TaskID struct {
	Key   any
	Label string
}

// String renders the identifier for diagnostics as "key" or "key: label".
func (id TaskID) String() string {
	if id.Label == "" {
		return fmt.Sprintf("%v", id.Key)
	}
	return fmt.Sprintf("%v: %s", id.Key, id.Label)
}

// Messenger is the one-way progress channel handed to a running task.
// Task code may call it zero or more times; the engine is the sole consumer.
type Messenger interface {
	// SendProgress records the task's progress in [0,1] together with a short
	// context string. Out-of-range values are clamped, never rejected. The
	// call overwrites the previous pair (latest value wins) and never blocks.
	SendProgress(progress float64, context string)
}

// Action is the unit of work bound to a TaskSpec. It receives the resolved
// positional arguments and returns the task's output, which becomes available
// to dependents through OutputFrom. A non-nil error (or a panic, which the
// executor recovers) marks the task Failed.
type Action func(ctx context.Context, m Messenger, args []any) (any, error)

// TaskSpec declares one task: identifier, action, positional arguments and
// explicit dependencies. Args entries may be literal values or OutputFrom
// markers. Specs are treated as immutable once handed to Build.
type TaskSpec struct {
	ID        TaskID
	Run       Action
	Args      []any
	DependsOn []TaskID
}

// outputRef marks an argument slot to be filled with another task's output.
type outputRef struct {
	id TaskID
}

// OutputFrom returns an argument placeholder resolved at dispatch time to the
// referenced task's captured output. Placing it in TaskSpec.Args makes the
// task depend on id even when id is absent from DependsOn.
func OutputFrom(id TaskID) any {
	return outputRef{id: id}
}

// effectiveDeps returns the union of explicit dependencies and OutputFrom
// targets, deduplicated by key. Order follows first appearance.
func (s TaskSpec) effectiveDeps() []TaskID {
	var deps []TaskID
	seen := make(map[any]bool)
	add := func(id TaskID) {
		if !seen[id.Key] {
			seen[id.Key] = true
			deps = append(deps, id)
		}
	}
	for _, id := range s.DependsOn {
		add(id)
	}
	for _, arg := range s.Args {
		if ref, ok := arg.(outputRef); ok {
			add(ref.id)
		}
	}
	return deps
}
