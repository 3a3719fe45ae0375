package scheduler

import "sync"

// Status represents the current state of a task during a run.
type Status int

const (
	Pending   Status = iota // Waiting for its layer
	Running                 // Currently executing
	Succeeded               // Action returned normally
	Failed                  // Action returned an error or panicked
	Skipped                 // Never ran: an effective dependency ended Failed or Skipped
)

// Terminal reports whether no further transitions occur from s.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// String returns a lowercase name suitable for logs and reports.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Result is the recorded outcome of one task. During a run the executor owns
// the entry exclusively; the Results returned by Execute are a read-only
// terminal snapshot.
type Result struct {
	ID       TaskID
	Status   Status
	Progress float64 // Last reported progress in [0,1]
	Context  string  // Context string of the last progress report
	Output   any     // Captured return value (Succeeded only)
	Err      error   // Failure detail (Failed only)
}

// Results maps task keys to terminal results for one Execute call.
type Results map[any]Result

// Get looks up the result for id.
func (r Results) Get(id TaskID) (Result, bool) {
	res, ok := r[id.Key]
	return res, ok
}

// OK reports whether every task succeeded. Partial completion (Failed or
// Skipped entries) is deliberately left for the caller to inspect.
func (r Results) OK() bool {
	for _, res := range r {
		if res.Status != Succeeded {
			return false
		}
	}
	return true
}

// entry is the executor's live store slot for one task. Exactly one worker
// writes it while the task runs; Snapshot readers take the mutex for a
// consistent (progress, context) pair.
type entry struct {
	mu  sync.Mutex
	res Result
}

func newEntry(id TaskID) *entry {
	return &entry{res: Result{ID: id, Status: Pending}}
}

func (e *entry) snapshot() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.res
}

func (e *entry) setProgress(progress float64, context string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Progress = progress
	e.res.Context = context
}

func (e *entry) markRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Status = Running
}

// markSucceeded stores the output before flipping the status, so any observer
// that sees Succeeded also sees the captured output.
func (e *entry) markSucceeded(output any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Output = output
	if e.res.Progress < 1 {
		e.res.Progress = 1
	}
	e.res.Status = Succeeded
}

// markFailed leaves the last reported progress untouched.
func (e *entry) markFailed(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Err = err
	e.res.Status = Failed
}

func (e *entry) markSkipped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Status = Skipped
}
