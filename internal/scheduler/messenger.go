package scheduler

import "github.com/teakit/teakit/internal/events"

// messenger binds one running task to its result entry. Each call overwrites
// the entry's (progress, context) pair under the entry mutex; there is no
// queue, the latest pair wins. The task occupies exactly one worker for its
// whole run, so it is the only writer of these fields.
type messenger struct {
	id    TaskID
	entry *entry
	bus   *events.Bus
}

func (m *messenger) SendProgress(progress float64, context string) {
	// Clamp rather than reject: a reporting bug inside a task must not
	// affect the scheduler.
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	m.entry.setProgress(progress, context)
	if m.bus != nil {
		m.bus.Publish(events.TopicTask, events.TaskProgress{
			Task:     m.id.String(),
			Progress: progress,
			Context:  context,
		})
	}
}
