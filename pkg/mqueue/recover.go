package mqueue

import (
	"github.com/baaaht/mqueue/pkg/sched"
)

// Recover takes a deleted task off whichever wait list of q it occupies and
// resumes it with a recovery indication. It never blocks on the victim.
func (q *Queue) Recover(t *sched.Task) {
	q.mu.Lock()
	var w *waiter
	for _, list := range []*waitList{&q.recvWaiters, &q.sendWaiters} {
		if w = list.find(t); w != nil {
			list.remove(w)
			break
		}
	}
	q.mu.Unlock()

	if w == nil {
		// Already woken, or the timer fired first.
		return
	}
	w.resume(wakeRecovered)

	q.reg.logger.Debug("Recovered blocked task",
		"queue", q.name,
		"task", t.ID(),
		"cond", w.cond.String())
}
