package events

// Event is implemented by every message published on the Bus.
type Event interface {
	Kind() string
}

// Topics group events by producer granularity: per-task lifecycle and
// whole-run milestones.
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event kinds.
const (
	KindTaskStarted  = "task.started"
	KindTaskProgress = "task.progress"
	KindTaskFinished = "task.finished"
	KindRunProgress  = "run.progress"
	KindRunFinished  = "run.finished"
)

// TaskStarted is published when a task is dispatched to a worker.
type TaskStarted struct {
	Task string // display identifier ("key" or "key: label")
}

func (TaskStarted) Kind() string { return KindTaskStarted }

// TaskProgress mirrors a task's SendProgress call.
type TaskProgress struct {
	Task     string
	Progress float64
	Context  string
}

func (TaskProgress) Kind() string { return KindTaskProgress }

// TaskFinished is published when a task reaches a terminal status.
type TaskFinished struct {
	Task   string
	Status string // "succeeded", "failed" or "skipped"
	Err    string // failure detail, empty unless failed
}

func (TaskFinished) Kind() string { return KindTaskFinished }

// RunProgress summarizes the store after each layer barrier.
type RunProgress struct {
	Total    int
	Terminal int
	Failed   int
	Skipped  int
}

func (RunProgress) Kind() string { return KindRunProgress }

// RunFinished is published once, right before Execute returns.
type RunFinished struct {
	OK bool // true when every task succeeded
}

func (RunFinished) Kind() string { return KindRunFinished }
