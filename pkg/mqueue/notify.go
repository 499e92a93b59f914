package mqueue

import (
	"github.com/baaaht/mqueue/pkg/types"
)

// Notification is delivered when a message arrives on an empty queue that no
// task is waiting to receive from
type Notification struct {
	Queue string
	Value any
}

// notification is a queue's single notification registration
type notification struct {
	owner *Descriptor
	ch    chan<- Notification
	value any
}

// pendingNotification is a registration taken off its queue, ready to deliver
type pendingNotification struct {
	queue string
	ch    chan<- Notification
	value any
	log   func(msg string, args ...any)
}

// Notify registers ch to receive one Notification carrying value the next time
// a message arrives on the empty queue while no task is blocked receiving.
// The registration is removed once it fires or when d is closed. A nil ch
// removes d's registration.
//
// Delivery never blocks: a notification that finds ch full is dropped.
func (d *Descriptor) Notify(ch chan<- Notification, value any) error {
	if err := d.valid(); err != nil {
		return err
	}

	q := d.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch == nil {
		if q.notify == nil || q.notify.owner != d {
			return types.NewError(types.ErrCodeNotFound, "no notification registered by this descriptor")
		}
		q.notify = nil
		return nil
	}
	if q.notify != nil {
		return types.NewError(types.ErrCodeBusy, "notification already registered on queue "+q.name)
	}
	q.notify = &notification{owner: d, ch: ch, value: value}
	return nil
}

// takeNotification removes the registration for delivery. Called with q.mu held.
func (q *Queue) takeNotification() *pendingNotification {
	n := q.notify
	if n == nil {
		return nil
	}
	q.notify = nil
	return &pendingNotification{queue: q.name, ch: n.ch, value: n.value, log: q.reg.logger.Warn}
}

func (p *pendingNotification) deliver() {
	if p == nil {
		return
	}
	select {
	case p.ch <- Notification{Queue: p.queue, Value: p.value}:
	default:
		p.log("Dropped queue notification, channel full", "queue", p.queue)
	}
}
