package mqueue

import (
	"fmt"
	"time"

	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
)

func (d *Descriptor) checkSend(payload []byte, prio int) error {
	if err := d.valid(); err != nil {
		return err
	}
	if prio < 0 || prio > d.reg.cfg.PrioMax {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("priority %d outside [0, %d]", prio, d.reg.cfg.PrioMax))
	}
	if d.getFlags()&OWrite == 0 {
		return types.NewError(types.ErrCodePermissionDenied, "descriptor not open for writing")
	}
	if len(payload) > d.queue.msgSize {
		return types.NewError(types.ErrCodeMessageTooLarge,
			fmt.Sprintf("message of %d bytes exceeds %d", len(payload), d.queue.msgSize))
	}
	return nil
}

// Send enqueues payload with priority prio, blocking t while the queue is full
// unless the descriptor is non-blocking.
func (d *Descriptor) Send(t *sched.Task, payload []byte, prio int) error {
	return d.send(t, payload, prio, nil)
}

// TimedSend is Send bounded by an absolute deadline
func (d *Descriptor) TimedSend(t *sched.Task, payload []byte, prio int, deadline time.Time) error {
	if deadline.IsZero() {
		return types.NewError(types.ErrCodeInvalidArgument, "deadline cannot be zero")
	}
	return d.send(t, payload, prio, &deadline)
}

func (d *Descriptor) send(t *sched.Task, payload []byte, prio int, deadline *time.Time) error {
	if err := d.checkSend(payload, prio); err != nil {
		return err
	}
	if t == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "task cannot be nil")
	}
	if t.CancelPending() {
		return types.NewError(types.ErrCodeCanceled, "operation canceled")
	}

	m, err := d.reg.pool.Alloc(false)
	if err != nil {
		return err
	}
	m.set(payload, prio)

	q := d.queue
	q.mu.Lock()
	for q.full() {
		if q.destroyed {
			q.mu.Unlock()
			d.reg.pool.Free(m)
			return types.NewError(types.ErrCodeUnavailable, "queue destroyed: "+q.name)
		}
		if d.getFlags()&ONonblock != 0 {
			q.mu.Unlock()
			d.reg.pool.Free(m)
			return types.NewError(types.ErrCodeWouldBlock, "queue is full: "+q.name)
		}
		if err := q.wait(t, waitNotFull, deadline); err != nil {
			q.mu.Unlock()
			d.reg.pool.Free(m)
			return err
		}
	}
	if q.destroyed {
		q.mu.Unlock()
		d.reg.pool.Free(m)
		return types.NewError(types.ErrCodeUnavailable, "queue destroyed: "+q.name)
	}

	w, n := q.post(m)
	q.mu.Unlock()

	w.resume(wakeSignal)
	n.deliver()
	return nil
}

// SendFromInterrupt enqueues payload from a context that must never block.
//
// It draws on the interrupt message reserve and enqueues even when the queue
// is at capacity, leaving it above MaxMsgs until receivers catch up.
func (d *Descriptor) SendFromInterrupt(payload []byte, prio int) error {
	if err := d.checkSend(payload, prio); err != nil {
		return err
	}

	m, err := d.reg.pool.Alloc(true)
	if err != nil {
		return err
	}
	m.set(payload, prio)

	q := d.queue
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		d.reg.pool.Free(m)
		return types.NewError(types.ErrCodeUnavailable, "queue destroyed: "+q.name)
	}
	over := q.full()
	if over {
		q.overflows++
	}
	w, n := q.post(m)
	cur := len(q.msgs)
	q.mu.Unlock()

	if over {
		d.reg.logger.Warn("Queue over capacity after interrupt send",
			"queue", q.name, "cur_msgs", cur, "max_msgs", q.maxMsgs)
	}

	w.resume(wakeSignal)
	n.deliver()
	return nil
}

// post enqueues m and takes whatever must be woken for it. Called with q.mu
// held; the caller resumes the waiter and delivers the notification after
// leaving the critical section.
func (q *Queue) post(m *Message) (*waiter, *pendingNotification) {
	wasEmpty := len(q.msgs) == 0
	q.enqueue(m)

	w := q.takeWaiter(waitNotEmpty)
	if w != nil || !wasEmpty {
		return w, nil
	}
	return nil, q.takeNotification()
}
