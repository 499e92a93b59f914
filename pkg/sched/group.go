package sched

import (
	"fmt"
	"sync"

	"github.com/baaaht/mqueue/pkg/types"
)

// GroupID identifies a task group
type GroupID uint32

// Resource is an object owned by a task group and released when the group exits
type Resource interface {
	Release() error
}

// Group is the ownership scope of a set of tasks. Resources attached to the
// group (open queue descriptors) are released when its last member exits.
type Group struct {
	id    GroupID
	name  string
	sched *Scheduler

	mu        sync.Mutex
	members   map[TaskID]*Task
	resources []Resource
	exited    bool
}

// ID returns the group identifier
func (g *Group) ID() GroupID { return g.id }

// Name returns the group name
func (g *Group) Name() string { return g.name }

// Attach adds r to the group's resource list
func (g *Group) Attach(r Resource) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.exited {
		return types.NewError(types.ErrCodeUnavailable, "group has exited: "+g.name)
	}
	g.resources = append(g.resources, r)
	return nil
}

// Detach removes r from the group's resource list. It reports whether r was attached.
func (g *Group) Detach(r Resource) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, res := range g.resources {
		if res == r {
			g.resources = append(g.resources[:i], g.resources[i+1:]...)
			return true
		}
	}
	return false
}

// Resources returns the number of attached resources
func (g *Group) Resources() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.resources)
}

// Members returns the number of live tasks in the group
func (g *Group) Members() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Exited reports whether the group has been torn down
func (g *Group) Exited() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exited
}

// leave removes t from the group and reports whether it was the last member
func (g *Group) leave(t *Task) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.members[t.id]; !ok {
		return false
	}
	delete(g.members, t.id)
	if len(g.members) > 0 || g.exited {
		return false
	}
	g.exited = true
	return true
}

// release releases every attached resource. The group lock is not held while
// resources run their Release, since releasing detaches them from the group.
func (g *Group) release() []error {
	var errs []error
	for {
		g.mu.Lock()
		if len(g.resources) == 0 {
			g.mu.Unlock()
			return errs
		}
		r := g.resources[0]
		g.mu.Unlock()

		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
		// Release normally detaches; make sure a failing resource cannot loop forever.
		g.Detach(r)
	}
}

// String returns a string representation of the group
func (g *Group) String() string {
	return fmt.Sprintf("Group{ID: %d, Name: %s}", g.id, g.name)
}
