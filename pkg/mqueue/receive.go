package mqueue

import (
	"fmt"
	"time"

	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
)

// Receive removes the highest-priority message into buf, blocking t while the
// queue is empty unless the descriptor is non-blocking. buf must hold at least
// the queue's message size.
func (d *Descriptor) Receive(t *sched.Task, buf []byte) (int, int, error) {
	return d.receive(t, buf, nil)
}

// TimedReceive is Receive bounded by an absolute deadline
func (d *Descriptor) TimedReceive(t *sched.Task, buf []byte, deadline time.Time) (int, int, error) {
	if deadline.IsZero() {
		return 0, 0, types.NewError(types.ErrCodeInvalidArgument, "deadline cannot be zero")
	}
	return d.receive(t, buf, &deadline)
}

func (d *Descriptor) receive(t *sched.Task, buf []byte, deadline *time.Time) (int, int, error) {
	if err := d.valid(); err != nil {
		return 0, 0, err
	}
	if buf == nil {
		return 0, 0, types.NewError(types.ErrCodeInvalidArgument, "buffer cannot be nil")
	}
	if t == nil {
		return 0, 0, types.NewError(types.ErrCodeInvalidArgument, "task cannot be nil")
	}
	if d.getFlags()&ORead == 0 {
		return 0, 0, types.NewError(types.ErrCodePermissionDenied, "descriptor not open for reading")
	}
	q := d.queue
	if len(buf) < q.msgSize {
		return 0, 0, types.NewError(types.ErrCodeBufferTooSmall,
			fmt.Sprintf("buffer of %d bytes is smaller than message size %d", len(buf), q.msgSize))
	}
	if t.CancelPending() {
		return 0, 0, types.NewError(types.ErrCodeCanceled, "operation canceled")
	}

	q.mu.Lock()
	for len(q.msgs) == 0 {
		if q.destroyed {
			q.mu.Unlock()
			return 0, 0, types.NewError(types.ErrCodeUnavailable, "queue destroyed: "+q.name)
		}
		if d.getFlags()&ONonblock != 0 {
			q.mu.Unlock()
			return 0, 0, types.NewError(types.ErrCodeWouldBlock, "queue is empty: "+q.name)
		}
		if err := q.wait(t, waitNotEmpty, deadline); err != nil {
			q.mu.Unlock()
			return 0, 0, err
		}
	}

	m := q.dequeue()
	var w *waiter
	if !q.full() {
		w = q.takeWaiter(waitNotFull)
	}
	q.mu.Unlock()

	n := copy(buf, m.Payload())
	prio := m.Priority
	d.reg.pool.Free(m)

	w.resume(wakeSignal)
	return n, prio, nil
}
