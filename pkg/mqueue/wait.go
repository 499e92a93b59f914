package mqueue

import (
	"time"

	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
	"github.com/jonboulle/clockwork"
)

// waitCond is the condition a blocked task waits for
type waitCond uint8

const (
	waitNotEmpty waitCond = iota
	waitNotFull
)

func (c waitCond) String() string {
	if c == waitNotEmpty {
		return "not_empty"
	}
	return "not_full"
}

// wakeReason tells a resumed waiter why it was resumed
type wakeReason uint8

const (
	wakeSignal wakeReason = iota
	wakeTimeout
	wakeRecovered
	wakeDestroyed
)

// waiter is the wait record of one blocked task
type waiter struct {
	task   *sched.Task
	prio   sched.Priority
	seq    uint64
	cond   waitCond
	queued bool
	// wake receives exactly one value from whoever removes the waiter from its list
	wake chan wakeReason
}

// waitList holds blocked tasks ordered by priority, then arrival
type waitList []*waiter

// insert places w after every waiter of equal or higher priority
func (l *waitList) insert(w *waiter) {
	s := *l
	i := 0
	for i < len(s) && s[i].prio >= w.prio {
		i++
	}
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = w
	*l = s
	w.queued = true
}

func (l *waitList) remove(w *waiter) bool {
	s := *l
	for i, x := range s {
		if x == w {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = nil
			*l = s[:len(s)-1]
			w.queued = false
			return true
		}
	}
	return false
}

// popFirst removes and returns the highest-priority waiter, or nil
func (l *waitList) popFirst() *waiter {
	s := *l
	if len(s) == 0 {
		return nil
	}
	w := s[0]
	copy(s, s[1:])
	s[len(s)-1] = nil
	*l = s[:len(s)-1]
	w.queued = false
	return w
}

func (l waitList) find(t *sched.Task) *waiter {
	for _, w := range l {
		if w.task == t {
			return w
		}
	}
	return nil
}

func (q *Queue) waiters(cond waitCond) *waitList {
	if cond == waitNotEmpty {
		return &q.recvWaiters
	}
	return &q.sendWaiters
}

// wait suspends t until cond may hold, the deadline passes or t is recovered.
// Called with q.mu held; returns with q.mu held. On every error return the
// waiter has already left the wait list.
func (q *Queue) wait(t *sched.Task, cond waitCond, deadline *time.Time) error {
	clock := q.reg.clock

	var timeout time.Duration
	if deadline != nil {
		timeout = deadline.Sub(clock.Now())
		if timeout <= 0 {
			return types.NewError(types.ErrCodeTimeout, "deadline already passed")
		}
	}

	q.waitSeq++
	w := &waiter{
		task: t,
		prio: t.Priority(),
		seq:  q.waitSeq,
		cond: cond,
		wake: make(chan wakeReason, 1),
	}
	list := q.waiters(cond)
	list.insert(w)
	if !t.SetWaitObject(q) {
		list.remove(w)
		return types.NewError(types.ErrCodeRecovered, "task deleted before waiting on queue "+q.name)
	}
	q.mu.Unlock()

	var timer clockwork.Timer
	var expired <-chan time.Time
	if deadline != nil {
		timer = clock.NewTimer(timeout)
		expired = timer.Chan()
	}

	var reason wakeReason
	select {
	case reason = <-w.wake:
	case <-expired:
		reason = wakeTimeout
	}
	if timer != nil {
		timer.Stop()
	}

	q.mu.Lock()
	t.ClearWaitObject(q)
	if w.queued {
		if reason != wakeTimeout {
			invariant(q.reg.logger, false, "woken waiter still on wait list",
				"queue", q.name, "task", t.ID(), "cond", cond.String())
		}
		list.remove(w)
	} else if reason == wakeTimeout {
		// Someone dequeued the waiter as the timer fired; their reason wins.
		reason = <-w.wake
	}

	switch reason {
	case wakeTimeout:
		return types.NewError(types.ErrCodeTimeout, "timed out waiting on queue "+q.name)
	case wakeRecovered:
		return types.NewError(types.ErrCodeRecovered, "task deleted while waiting on queue "+q.name)
	case wakeDestroyed:
		return types.NewError(types.ErrCodeUnavailable, "queue destroyed while waiting: "+q.name)
	}
	return nil
}

// takeWaiter removes the highest-priority waiter for cond. Called with q.mu
// held; the caller wakes the returned waiter after leaving the critical section.
func (q *Queue) takeWaiter(cond waitCond) *waiter {
	return q.waiters(cond).popFirst()
}

// resume delivers reason to a waiter already removed from its list
func (w *waiter) resume(reason wakeReason) {
	if w == nil {
		return
	}
	w.wake <- reason
}
