package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/teakit/teakit/internal/events"
)

// Executor runs one graph to completion with a bounded worker pool. Each
// instance owns its own result store, so independent graphs can run
// concurrently in the same program; there is no process-wide state.
type Executor struct {
	graph   *Graph
	bus     *events.Bus
	entries map[any]*entry
}

// Option configures an Executor.
type Option func(*Executor)

// WithBus attaches an event bus. The executor publishes task lifecycle,
// progress and run milestone events on it; publishing never blocks a worker.
func WithBus(bus *events.Bus) Option {
	return func(e *Executor) {
		e.bus = bus
	}
}

// NewExecutor creates an executor for one run of graph.
func NewExecutor(graph *Graph, opts ...Option) *Executor {
	e := &Executor{
		graph:   graph,
		entries: make(map[any]*entry, graph.Len()),
	}
	for _, id := range graph.order {
		e.entries[id.Key] = newEntry(id)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute blocks until every task reaches a terminal status and returns the
// full result snapshot. Individual task failures are encoded in the results,
// never raised; the only error is engine misuse (maxWorkers < 1).
//
// Layers are processed in ascending order with a hard barrier between them:
// a layer starts dispatching only after the previous layer is fully terminal,
// which is what makes dependency outputs safe to read. Within a layer, tasks
// run on up to maxWorkers workers with no ordering guarantee.
func (e *Executor) Execute(ctx context.Context, maxWorkers int) (Results, error) {
	if maxWorkers < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidWorkers, maxWorkers)
	}

	for _, layer := range e.graph.layers {
		var ready []TaskID
		for _, id := range layer {
			if dep, blocked := e.blockedBy(id); blocked {
				e.entries[id.Key].markSkipped()
				e.publish(events.TopicTask, events.TaskFinished{
					Task:   id.String(),
					Status: Skipped.String(),
					Err:    fmt.Sprintf("dependency %v did not succeed", dep.Key),
				})
				continue
			}
			ready = append(ready, id)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxWorkers)
		for _, id := range ready {
			id := id
			g.Go(func() error {
				e.runTask(gctx, id)
				return nil
			})
		}
		// Workers always return nil; failures live in the store.
		_ = g.Wait()

		e.publishRunProgress()
	}

	results := make(Results, len(e.entries))
	for key, ent := range e.entries {
		results[key] = ent.snapshot()
	}
	e.publish(events.TopicRun, events.RunFinished{OK: results.OK()})
	return results, nil
}

// Snapshot returns a consistent point-in-time copy of every task's result in
// topological order. Safe to call from observers while Execute is running.
func (e *Executor) Snapshot() []Result {
	out := make([]Result, 0, len(e.graph.order))
	for _, id := range e.graph.order {
		out = append(out, e.entries[id.Key].snapshot())
	}
	return out
}

// blockedBy reports whether any effective dependency of id ended Failed or
// Skipped. Skipping cascades: a task downstream of a skipped task is itself
// skipped, layer by layer.
func (e *Executor) blockedBy(id TaskID) (TaskID, bool) {
	for _, dep := range e.graph.nodes[id.Key].deps {
		switch e.entries[dep.Key].snapshot().Status {
		case Failed, Skipped:
			return dep, true
		}
	}
	return TaskID{}, false
}

// runTask executes one dispatched task: resolve OutputFrom arguments, bind a
// fresh messenger, invoke the action and record the terminal state.
func (e *Executor) runTask(ctx context.Context, id TaskID) {
	ent := e.entries[id.Key]
	n := e.graph.nodes[id.Key]

	ent.markRunning()
	e.publish(events.TopicTask, events.TaskStarted{Task: id.String()})

	args, err := e.resolveArgs(id, n.spec.Args)
	if err == nil {
		m := &messenger{id: id, entry: ent, bus: e.bus}
		var out any
		out, err = invoke(ctx, id, n.spec.Run, m, args)
		if err == nil {
			ent.markSucceeded(out)
			e.publish(events.TopicTask, events.TaskFinished{
				Task:   id.String(),
				Status: Succeeded.String(),
			})
			return
		}
	}

	ent.markFailed(err)
	e.publish(events.TopicTask, events.TaskFinished{
		Task:   id.String(),
		Status: Failed.String(),
		Err:    err.Error(),
	})
}

// resolveArgs substitutes every OutputFrom marker with the referenced task's
// captured output. The layer barrier guarantees referenced tasks are already
// terminal; a non-succeeded reference can only mean the marker points at a
// task that is not an effective dependency of id, which Build rules out.
func (e *Executor) resolveArgs(id TaskID, args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	resolved := make([]any, len(args))
	for i, arg := range args {
		ref, ok := arg.(outputRef)
		if !ok {
			resolved[i] = arg
			continue
		}
		dep := e.entries[ref.id.Key].snapshot()
		if dep.Status != Succeeded {
			return nil, fmt.Errorf("task %q requires output of task %q, which is %s", id, ref.id, dep.Status)
		}
		resolved[i] = dep.Output
	}
	return resolved, nil
}

// invoke calls the action, converting panics into failures so a broken task
// body cannot take down the run.
func invoke(ctx context.Context, id TaskID, run Action, m Messenger, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q panicked: %v", id, r)
		}
	}()
	return run(ctx, m, args)
}

func (e *Executor) publish(topic string, event events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, event)
	}
}

func (e *Executor) publishRunProgress() {
	if e.bus == nil {
		return
	}
	progress := events.RunProgress{Total: len(e.entries)}
	for _, ent := range e.entries {
		res := ent.snapshot()
		if res.Status.Terminal() {
			progress.Terminal++
		}
		switch res.Status {
		case Failed:
			progress.Failed++
		case Skipped:
			progress.Skipped++
		}
	}
	e.publish(events.TopicRun, progress)
}
