package sched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/baaaht/mqueue/pkg/types"
)

// TaskID identifies a task within a Scheduler
type TaskID uint32

// Priority is a task scheduling priority. Higher values are more urgent.
type Priority int

const (
	PriorityMin     Priority = 1
	PriorityDefault Priority = 100
	PriorityMax     Priority = 255
)

// Waitable is a kernel object a task can be blocked on.
//
// Recover is invoked when a blocked task is deleted; it must remove the task
// from the object's wait structures and resume it with a recovery indication.
type Waitable interface {
	Recover(t *Task)
}

// Task is a schedulable unit of execution owned by a Group
type Task struct {
	id       TaskID
	name     string
	priority Priority
	group    *Group
	sched    *Scheduler

	mu       sync.Mutex
	status   types.Status
	waitObj  Waitable
	canceled atomic.Bool
}

// ID returns the task identifier
func (t *Task) ID() TaskID { return t.id }

// Name returns the task name
func (t *Task) Name() string { return t.name }

// Priority returns the task's scheduling priority
func (t *Task) Priority() Priority { return t.priority }

// Group returns the task group the task belongs to
func (t *Task) Group() *Group { return t.group }

// Status returns the current task status
func (t *Task) Status() types.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Cancel posts a deferred cancellation request. It is observed the next time
// the task enters a cancellation point; a task already blocked is not woken.
func (t *Task) Cancel() {
	t.canceled.Store(true)
}

// CancelPending reports whether a cancellation request is pending
func (t *Task) CancelPending() bool {
	return t.canceled.Load()
}

// SetWaitObject records the object the task is about to block on. It fails
// once the task has been deleted, so a dying task never starts a new wait.
func (t *Task) SetWaitObject(w Waitable) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == types.StatusTerminated || t.status == types.StatusExited {
		return false
	}
	t.waitObj = w
	t.status = types.StatusBlocked
	return true
}

// ClearWaitObject clears the wait object if it is still w
func (t *Task) ClearWaitObject(w Waitable) {
	t.mu.Lock()
	if t.waitObj == w {
		t.waitObj = nil
		if t.status == types.StatusBlocked {
			t.status = types.StatusRunning
		}
	}
	t.mu.Unlock()
}

// WaitObject returns the object the task is blocked on, or nil
func (t *Task) WaitObject() Waitable {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitObj
}

// Exit terminates the task normally. When the task is the last member of its
// group, the group's resources are released.
func (t *Task) Exit() {
	t.sched.exit(t, types.StatusExited)
}

// String returns a string representation of the task
func (t *Task) String() string {
	return fmt.Sprintf("Task{ID: %d, Name: %s, Priority: %d}", t.id, t.name, t.priority)
}
