package schedule

import (
	"time"

	"tradecore/internal/message"
)

var _ message.ScheduledTask = (*Task)(nil)

// Task guards a long running job with a working time.
// The task never changes its running state, isRunning reports the caller's.
type Task struct {
	Name      string
	schedule  message.WorkingTime
	isRunning func() bool
}

func NewTask(name string, schedule message.WorkingTime, isRunning func() bool) *Task {
	if isRunning == nil {
		isRunning = func() bool { return false }
	}
	return &Task{Name: name, schedule: schedule, isRunning: isRunning}
}

func (t *Task) WorkingTime() message.WorkingTime { return t.schedule }

// CanStart is true when the task is stopped and the schedule is open.
// A task without a schedule may always start.
func (t *Task) CanStart(at time.Time) bool {
	if t.isRunning() {
		return false
	}
	return t.schedule == nil || t.schedule.IsOpen(at)
}

// CanStop is true while the task is running.
func (t *Task) CanStop(at time.Time) bool {
	return t.isRunning()
}

// ShouldStop is true when the task is running outside its schedule.
func (t *Task) ShouldStop(at time.Time) bool {
	return t.CanStop(at) && t.schedule != nil && !t.schedule.IsOpen(at)
}
