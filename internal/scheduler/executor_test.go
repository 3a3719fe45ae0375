package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// recorder tracks the order in which actions start and finish.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) indexOf(event string) int {
	for i, e := range r.log() {
		if e == event {
			return i
		}
	}
	return -1
}

func record(rec *recorder, name string) Action {
	return func(ctx context.Context, m Messenger, args []any) (any, error) {
		rec.add(name + ":start")
		defer rec.add(name + ":end")
		return name, nil
	}
}

func failing(err error) Action {
	return func(ctx context.Context, m Messenger, args []any) (any, error) {
		return nil, err
	}
}

func mustBuild(t *testing.T, specs []TaskSpec) *Graph {
	t.Helper()
	g, err := Build(specs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func TestExecuteInvalidWorkers(t *testing.T) {
	g := mustBuild(t, []TaskSpec{{ID: id("a"), Run: noop}})
	for _, workers := range []int{0, -1} {
		_, err := NewExecutor(g).Execute(context.Background(), workers)
		if !errors.Is(err, ErrInvalidWorkers) {
			t.Errorf("Execute(%d) error = %v, want ErrInvalidWorkers", workers, err)
		}
	}
}

// TestExecuteBarrier runs the {a} {b,c} {d} shape serially and checks that d
// never starts before both b and c finished, and that b and c never overlap
// with maxWorkers = 1.
func TestExecuteBarrier(t *testing.T) {
	rec := &recorder{}
	g := mustBuild(t, []TaskSpec{
		{ID: id("a"), Run: record(rec, "a")},
		{ID: id("b"), Run: record(rec, "b"), DependsOn: []TaskID{id("a")}},
		{ID: id("c"), Run: record(rec, "c"), DependsOn: []TaskID{id("a")}},
		{ID: id("d"), Run: record(rec, "d"), DependsOn: []TaskID{id("b"), id("c")}},
	})

	results, err := NewExecutor(g).Execute(context.Background(), 1)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !results.OK() {
		t.Fatalf("run not OK: %+v", results)
	}

	log := rec.log()
	if len(log) != 8 {
		t.Fatalf("got %d events, want 8: %v", len(log), log)
	}
	if log[0] != "a:start" || log[1] != "a:end" {
		t.Errorf("a did not run alone first: %v", log)
	}
	if last := log[len(log)-1]; last != "d:end" {
		t.Errorf("d did not finish last: %v", log)
	}
	if rec.indexOf("d:start") < rec.indexOf("b:end") || rec.indexOf("d:start") < rec.indexOf("c:end") {
		t.Errorf("d started before b and c were terminal: %v", log)
	}
	// Serial execution: every start is immediately followed by its end.
	for i := 0; i < len(log); i += 2 {
		name := log[i][:1]
		if log[i] != name+":start" || log[i+1] != name+":end" {
			t.Errorf("tasks overlapped with one worker: %v", log)
			break
		}
	}
}

// TestExecuteOutputResolution passes a value through OutputFrom with no
// explicit dependency declared.
func TestExecuteOutputResolution(t *testing.T) {
	producer := func(ctx context.Context, m Messenger, args []any) (any, error) {
		return 41, nil
	}
	consumer := func(ctx context.Context, m Messenger, args []any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	}
	g := mustBuild(t, []TaskSpec{
		{ID: id("producer"), Run: producer},
		{ID: id("consumer"), Run: consumer, Args: []any{OutputFrom(id("producer")), 1}},
	})

	results, err := NewExecutor(g).Execute(context.Background(), 2)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	res, _ := results.Get(id("consumer"))
	if res.Status != Succeeded {
		t.Fatalf("consumer status = %s, want succeeded (err: %v)", res.Status, res.Err)
	}
	if res.Output != 42 {
		t.Errorf("consumer output = %v, want 42", res.Output)
	}
}

// TestExecuteFailurePropagation checks direct skips, transitive skips and
// that unrelated branches keep running.
func TestExecuteFailurePropagation(t *testing.T) {
	boom := errors.New("boom")
	invoked := &recorder{}
	g := mustBuild(t, []TaskSpec{
		{ID: id("b"), Run: failing(boom)},
		{ID: id("c"), Run: record(invoked, "c")},
		{ID: id("d"), Run: record(invoked, "d"), DependsOn: []TaskID{id("b")}},
		{ID: id("e"), Run: record(invoked, "e"), Args: []any{OutputFrom(id("d"))}},
		{ID: id("f"), Run: record(invoked, "f"), DependsOn: []TaskID{id("c")}},
	})

	results, err := NewExecutor(g).Execute(context.Background(), 4)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := map[any]Status{
		"b": Failed,
		"c": Succeeded,
		"d": Skipped, // direct dependent of the failure
		"e": Skipped, // downstream of a skipped task
		"f": Succeeded,
	}
	for key, status := range want {
		res := results[key]
		if res.Status != status {
			t.Errorf("task %v status = %s, want %s", key, res.Status, status)
		}
	}

	if res := results["b"]; !errors.Is(res.Err, boom) {
		t.Errorf("failed task error = %v, want boom", res.Err)
	}
	for _, event := range invoked.log() {
		if event == "d:start" || event == "e:start" {
			t.Errorf("skipped task action was invoked: %v", invoked.log())
		}
	}
	if results.OK() {
		t.Error("Results.OK() = true for a run with failures")
	}
}

// TestExecuteProgressSemantics covers the two progress rules: success forces
// 1.0, failure preserves the last reported value.
func TestExecuteProgressSemantics(t *testing.T) {
	t.Run("success advances to one", func(t *testing.T) {
		action := func(ctx context.Context, m Messenger, args []any) (any, error) {
			m.SendProgress(0.5, "halfway")
			return "done", nil
		}
		g := mustBuild(t, []TaskSpec{{ID: id("a"), Run: action}})
		results, err := NewExecutor(g).Execute(context.Background(), 1)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		res := results["a"]
		if res.Status != Succeeded || res.Progress != 1.0 {
			t.Errorf("got status=%s progress=%v, want succeeded 1.0", res.Status, res.Progress)
		}
	})

	t.Run("failure preserves last report", func(t *testing.T) {
		action := func(ctx context.Context, m Messenger, args []any) (any, error) {
			m.SendProgress(0.7, "midway")
			return nil, errors.New("gave up")
		}
		g := mustBuild(t, []TaskSpec{{ID: id("a"), Run: action}})
		results, err := NewExecutor(g).Execute(context.Background(), 1)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		res := results["a"]
		if res.Status != Failed {
			t.Fatalf("status = %s, want failed", res.Status)
		}
		if res.Progress != 0.7 || res.Context != "midway" {
			t.Errorf("got progress=%v context=%q, want 0.7 %q", res.Progress, res.Context, "midway")
		}
		if res.Err == nil {
			t.Error("failed task has no recorded error")
		}
	})

	t.Run("out of range reports are clamped", func(t *testing.T) {
		action := func(ctx context.Context, m Messenger, args []any) (any, error) {
			m.SendProgress(-3, "low")
			m.SendProgress(7, "high")
			return nil, errors.New("stop here so progress is preserved")
		}
		g := mustBuild(t, []TaskSpec{{ID: id("a"), Run: action}})
		results, _ := NewExecutor(g).Execute(context.Background(), 1)
		res := results["a"]
		if res.Progress != 1.0 || res.Context != "high" {
			t.Errorf("got progress=%v context=%q, want clamped 1.0 %q", res.Progress, res.Context, "high")
		}
	})
}

// TestExecutePanicRecovery: a panicking action becomes a Failed result, and
// the rest of the run completes.
func TestExecutePanicRecovery(t *testing.T) {
	g := mustBuild(t, []TaskSpec{
		{ID: id("bad"), Run: func(ctx context.Context, m Messenger, args []any) (any, error) {
			panic("unexpected state")
		}},
		{ID: id("good"), Run: noop},
	})
	results, err := NewExecutor(g).Execute(context.Background(), 2)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res := results["bad"]; res.Status != Failed || res.Err == nil {
		t.Errorf("panicked task: status=%s err=%v, want failed with error", res.Status, res.Err)
	}
	if res := results["good"]; res.Status != Succeeded {
		t.Errorf("sibling task status = %s, want succeeded", res.Status)
	}
}

// TestExecuteWorkerCountEquivalence runs the same graph serially and with a
// large pool; terminal statuses and outputs must match exactly.
func TestExecuteWorkerCountEquivalence(t *testing.T) {
	specs := func() []TaskSpec {
		double := func(ctx context.Context, m Messenger, args []any) (any, error) {
			return args[0].(int) * 2, nil
		}
		return []TaskSpec{
			{ID: id("seed"), Run: func(ctx context.Context, m Messenger, args []any) (any, error) {
				return 3, nil
			}},
			{ID: id("left"), Run: double, Args: []any{OutputFrom(id("seed"))}},
			{ID: id("right"), Run: double, Args: []any{OutputFrom(id("seed"))}},
			{ID: id("broken"), Run: failing(errors.New("always"))},
			{ID: id("after-broken"), Run: noop, DependsOn: []TaskID{id("broken")}},
			{ID: id("sum"), Run: func(ctx context.Context, m Messenger, args []any) (any, error) {
				return args[0].(int) + args[1].(int), nil
			}, Args: []any{OutputFrom(id("left")), OutputFrom(id("right"))}},
		}
	}

	run := func(workers int) Results {
		g := mustBuild(t, specs())
		results, err := NewExecutor(g).Execute(context.Background(), workers)
		if err != nil {
			t.Fatalf("Execute(%d) error = %v", workers, err)
		}
		return results
	}

	serial := run(1)
	parallel := run(8)
	if len(serial) != len(parallel) {
		t.Fatalf("result sizes differ: %d vs %d", len(serial), len(parallel))
	}
	for key, sres := range serial {
		pres := parallel[key]
		if sres.Status != pres.Status {
			t.Errorf("task %v: status %s serial vs %s parallel", key, sres.Status, pres.Status)
		}
		if fmt.Sprint(sres.Output) != fmt.Sprint(pres.Output) {
			t.Errorf("task %v: output %v serial vs %v parallel", key, sres.Output, pres.Output)
		}
	}
	if sum := serial["sum"]; sum.Output != 12 {
		t.Errorf("sum output = %v, want 12", sum.Output)
	}
}

// TestExecuteWideLayerBoundedWorkers checks that at most maxWorkers actions
// run concurrently inside one layer.
func TestExecuteWideLayerBoundedWorkers(t *testing.T) {
	const workers = 2
	var mu sync.Mutex
	running, peak := 0, 0

	gate := func(ctx context.Context, m Messenger, args []any) (any, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			running--
			mu.Unlock()
		}()
		return nil, nil
	}

	var specs []TaskSpec
	for i := 0; i < 10; i++ {
		specs = append(specs, TaskSpec{ID: id(i), Run: gate})
	}
	g := mustBuild(t, specs)
	if _, err := NewExecutor(g).Execute(context.Background(), workers); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if peak > workers {
		t.Errorf("observed %d concurrent tasks, budget is %d", peak, workers)
	}
}

// TestExecutorSnapshot reads the store from outside while the run is parked
// on a task, then after completion.
func TestExecutorSnapshot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	g := mustBuild(t, []TaskSpec{
		{ID: id("slow"), Run: func(ctx context.Context, m Messenger, args []any) (any, error) {
			m.SendProgress(0.25, "working")
			close(started)
			<-release
			return "ok", nil
		}},
	})

	exec := NewExecutor(g)
	done := make(chan Results)
	go func() {
		results, _ := exec.Execute(context.Background(), 1)
		done <- results
	}()

	<-started
	snap := exec.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d entries, want 1", len(snap))
	}
	if snap[0].Status != Running || snap[0].Progress != 0.25 || snap[0].Context != "working" {
		t.Errorf("mid-run snapshot = %+v, want running 0.25 %q", snap[0], "working")
	}

	close(release)
	results := <-done
	if res := results["slow"]; res.Status != Succeeded || res.Output != "ok" {
		t.Errorf("final result = %+v, want succeeded with output ok", res)
	}
}
