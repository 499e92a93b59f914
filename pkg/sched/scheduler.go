package sched

import (
	"sync"

	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/types"
)

// Scheduler tracks tasks and task groups and drives their teardown.
//
// It does not run tasks itself: every task is backed by a goroutine owned by
// the caller. The scheduler provides identity, priority, cancellation and the
// deletion/exit paths that kernel objects hook into.
type Scheduler struct {
	mu        sync.Mutex
	tasks     map[TaskID]*Task
	groups    map[GroupID]*Group
	nextTask  TaskID
	nextGroup GroupID
	logger    *logger.Logger
}

// New creates a new scheduler
func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Global()
	}
	return &Scheduler{
		tasks:  make(map[TaskID]*Task),
		groups: make(map[GroupID]*Group),
		logger: log.With("component", "sched"),
	}
}

// NewGroup creates an empty task group
func (s *Scheduler) NewGroup(name string) *Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGroup++
	g := &Group{
		id:      s.nextGroup,
		name:    name,
		sched:   s,
		members: make(map[TaskID]*Task),
	}
	s.groups[g.id] = g
	return g
}

// Spawn creates a task in group g. A nil group creates a new group named after the task.
func (s *Scheduler) Spawn(g *Group, name string, prio Priority) (*Task, error) {
	if prio < PriorityMin || prio > PriorityMax {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "task priority out of range")
	}
	if g == nil {
		g = s.NewGroup(name)
	}

	s.mu.Lock()
	s.nextTask++
	t := &Task{
		id:       s.nextTask,
		name:     name,
		priority: prio,
		group:    g,
		sched:    s,
		status:   types.StatusRunning,
	}
	s.mu.Unlock()

	g.mu.Lock()
	if g.exited {
		g.mu.Unlock()
		return nil, types.NewError(types.ErrCodeUnavailable, "group has exited: "+g.name)
	}
	g.members[t.id] = t
	g.mu.Unlock()

	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()

	s.logger.Debug("Task spawned", "task", t.id, "name", name, "priority", prio, "group", g.id)
	return t, nil
}

// Task returns a live task by ID
func (s *Scheduler) Task(id TaskID) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// TaskCount returns the number of live tasks
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Delete forcibly terminates t. If t is blocked on a kernel object, the object
// recovers it before the task leaves its group.
func (s *Scheduler) Delete(t *Task) error {
	if t == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "task cannot be nil")
	}

	t.mu.Lock()
	if t.status == types.StatusExited || t.status == types.StatusTerminated {
		t.mu.Unlock()
		return types.NewError(types.ErrCodeNotFound, "task is not running: "+t.name)
	}
	w := t.waitObj
	t.status = types.StatusTerminated
	t.mu.Unlock()

	t.canceled.Store(true)
	if w != nil {
		w.Recover(t)
	}

	s.logger.Debug("Task deleted", "task", t.id, "name", t.name, "was_blocked", w != nil)
	s.exit(t, types.StatusTerminated)
	return nil
}

func (s *Scheduler) exit(t *Task, status types.Status) {
	s.mu.Lock()
	if _, ok := s.tasks[t.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, t.id)
	s.mu.Unlock()

	t.mu.Lock()
	if t.status != types.StatusTerminated {
		t.status = status
	}
	t.mu.Unlock()

	g := t.group
	if !g.leave(t) {
		return
	}

	errs := g.release()
	for _, err := range errs {
		s.logger.Warn("Failed to release group resource", "group", g.id, "error", err)
	}

	s.mu.Lock()
	delete(s.groups, g.id)
	s.mu.Unlock()

	s.logger.Debug("Group exited", "group", g.id, "name", g.name, "release_errors", len(errs))
}
