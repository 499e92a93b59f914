package mqueue

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
)

// Flag is a set of open flags
type Flag uint32

const (
	ORead Flag = 1 << iota
	OWrite
	OCreat
	OExcl
	ONonblock

	ORdWr = ORead | OWrite
)

func (f Flag) String() string {
	var parts []string
	for _, b := range []struct {
		f    Flag
		name string
	}{
		{ORead, "read"},
		{OWrite, "write"},
		{OCreat, "creat"},
		{OExcl, "excl"},
		{ONonblock, "nonblock"},
	} {
		if f&b.f != 0 {
			parts = append(parts, b.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Attr describes a queue as seen through a descriptor.
// MaxMsgs and MsgSize are fixed at creation; CurMsgs is a snapshot.
type Attr struct {
	MaxMsgs int  `json:"max_msgs" yaml:"max_msgs"`
	MsgSize int  `json:"msg_size" yaml:"msg_size"`
	Flags   Flag `json:"flags" yaml:"flags"`
	CurMsgs int  `json:"cur_msgs" yaml:"cur_msgs"`
}

// Descriptor is an open reference to a named queue, owned by a task group
type Descriptor struct {
	reg   *Registry
	entry *entry
	queue *Queue
	group *sched.Group

	mu     sync.Mutex
	flags  Flag
	closed atomic.Bool
}

// Name returns the name the queue was opened under
func (d *Descriptor) Name() string {
	return d.queue.name
}

// Group returns the task group owning the descriptor
func (d *Descriptor) Group() *sched.Group {
	return d.group
}

// Close closes the descriptor
func (d *Descriptor) Close() error {
	if d == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "invalid descriptor")
	}
	return d.reg.Close(d)
}

// Release closes the descriptor when its owning group exits
func (d *Descriptor) Release() error {
	return d.Close()
}

// Closed reports whether the descriptor has been closed
func (d *Descriptor) Closed() bool {
	return d.closed.Load()
}

func (d *Descriptor) getFlags() Flag {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags
}

func (d *Descriptor) valid() error {
	if d == nil || d.closed.Load() {
		return types.NewError(types.ErrCodeInvalidArgument, "invalid descriptor")
	}
	return nil
}

// Attr returns the queue attributes and the descriptor flags
func (d *Descriptor) Attr() (Attr, error) {
	if err := d.valid(); err != nil {
		return Attr{}, err
	}
	q := d.queue
	q.mu.Lock()
	cur := len(q.msgs)
	q.mu.Unlock()

	return Attr{
		MaxMsgs: q.maxMsgs,
		MsgSize: q.msgSize,
		Flags:   d.getFlags() & ONonblock,
		CurMsgs: cur,
	}, nil
}

// SetAttr changes the descriptor's ONonblock flag and returns the previous
// attributes. Other bits in flags are ignored.
func (d *Descriptor) SetAttr(flags Flag) (Attr, error) {
	old, err := d.Attr()
	if err != nil {
		return Attr{}, err
	}

	d.mu.Lock()
	d.flags = (d.flags &^ ONonblock) | (flags & ONonblock)
	d.mu.Unlock()

	return old, nil
}

// Stats returns a snapshot of the underlying queue
func (d *Descriptor) Stats() (QueueStats, error) {
	if err := d.valid(); err != nil {
		return QueueStats{}, err
	}
	return d.queue.Stats(), nil
}

// String returns a string representation of the descriptor
func (d *Descriptor) String() string {
	return fmt.Sprintf("Descriptor{Queue: %s, Flags: %s, Group: %d}", d.queue.name, d.getFlags(), d.group.ID())
}
