package mqueue

import (
	"container/heap"
	"sync"
)

// messageHeap implements heap.Interface for priority-ordered delivery
type messageHeap []*Message

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	// Higher priority value means earlier delivery
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	// Equal priorities are delivered in arrival order
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *messageHeap) Push(x interface{}) {
	*h = append(*h, x.(*Message))
}

func (h *messageHeap) Pop() interface{} {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return m
}

// Queue is the queue object shared by every descriptor opened on one name
type Queue struct {
	name    string
	reg     *Registry
	maxMsgs int
	msgSize int

	// mu is the queue's critical section: message list, wait lists and the
	// notification registration are only touched while it is held.
	mu          sync.Mutex
	msgs        messageHeap
	seq         uint64
	recvWaiters waitList
	sendWaiters waitList
	waitSeq     uint64
	notify      *notification
	overflows   uint64
	destroyed   bool
}

func newQueue(reg *Registry, name string, attr Attr) *Queue {
	q := &Queue{
		name:    name,
		reg:     reg,
		maxMsgs: attr.MaxMsgs,
		msgSize: attr.MsgSize,
		msgs:    make(messageHeap, 0, attr.MaxMsgs),
	}
	heap.Init(&q.msgs)
	return q
}

// enqueue inserts m in delivery order. Called with q.mu held.
func (q *Queue) enqueue(m *Message) {
	q.seq++
	m.seq = q.seq
	heap.Push(&q.msgs, m)
}

// dequeue removes the next message to deliver. Called with q.mu held.
func (q *Queue) dequeue() *Message {
	if len(q.msgs) == 0 {
		return nil
	}
	return heap.Pop(&q.msgs).(*Message)
}

func (q *Queue) full() bool {
	return len(q.msgs) >= q.maxMsgs
}

// drain frees every pending message. Called with q.mu held.
func (q *Queue) drain() int {
	n := 0
	for m := q.dequeue(); m != nil; m = q.dequeue() {
		q.reg.pool.Free(m)
		n++
	}
	return n
}

// QueueStats represents a snapshot of a queue's state
type QueueStats struct {
	Name        string `json:"name"`
	CurMsgs     int    `json:"cur_msgs"`
	MaxMsgs     int    `json:"max_msgs"`
	MsgSize     int    `json:"msg_size"`
	RecvWaiters int    `json:"recv_waiters"`
	SendWaiters int    `json:"send_waiters"`
	Overflows   uint64 `json:"overflows"`
	Notify      bool   `json:"notify"`
}

// Stats returns a snapshot of the queue's state
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Name:        q.name,
		CurMsgs:     len(q.msgs),
		MaxMsgs:     q.maxMsgs,
		MsgSize:     q.msgSize,
		RecvWaiters: len(q.recvWaiters),
		SendWaiters: len(q.sendWaiters),
		Overflows:   q.overflows,
		Notify:      q.notify != nil,
	}
}
