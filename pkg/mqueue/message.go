package mqueue

import (
	"sync"

	"github.com/baaaht/mqueue/pkg/types"
)

// msgOrigin records which free list a message returns to
type msgOrigin uint8

const (
	originGeneral msgOrigin = iota
	originIRQ
	originDynamic
)

// Message is a queued message envelope
type Message struct {
	Priority int

	buf    []byte
	n      int
	seq    uint64
	origin msgOrigin
}

// Payload returns the message bytes
func (m *Message) Payload() []byte {
	return m.buf[:m.n]
}

func (m *Message) set(payload []byte, prio int) {
	m.n = copy(m.buf, payload)
	m.Priority = prio
}

// PoolStats describes message pool usage
type PoolStats struct {
	GeneralFree  int `json:"general_free"`
	IRQFree      int `json:"irq_free"`
	DynamicInUse int `json:"dynamic_in_use"`
}

// Pool allocates fixed-size message envelopes.
//
// Task context draws from the general reserve and falls back to dynamic
// allocation. Interrupt context only draws from its own reserve, then from the
// general reserve, and never allocates.
type Pool struct {
	mu      sync.Mutex
	size    int
	general []*Message
	irq     []*Message
	dynamic int
}

// NewPool creates a pool with n general and nIRQ interrupt-only envelopes of size bytes each
func NewPool(n, nIRQ, size int) *Pool {
	p := &Pool{
		size:    size,
		general: make([]*Message, 0, n),
		irq:     make([]*Message, 0, nIRQ),
	}
	for i := 0; i < n; i++ {
		p.general = append(p.general, &Message{buf: make([]byte, size), origin: originGeneral})
	}
	for i := 0; i < nIRQ; i++ {
		p.irq = append(p.irq, &Message{buf: make([]byte, size), origin: originIRQ})
	}
	return p
}

// Alloc returns an envelope. interrupt selects the non-allocating path.
func (p *Pool) Alloc(interrupt bool) (*Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interrupt {
		if m := pop(&p.irq); m != nil {
			return m, nil
		}
		if m := pop(&p.general); m != nil {
			return m, nil
		}
		return nil, types.NewError(types.ErrCodeResourceExhausted, "no message available in interrupt context")
	}

	if m := pop(&p.general); m != nil {
		return m, nil
	}
	p.dynamic++
	return &Message{buf: make([]byte, p.size), origin: originDynamic}, nil
}

// Free returns m to the free list it came from
func (p *Pool) Free(m *Message) {
	if m == nil {
		return
	}
	m.n = 0
	m.Priority = 0
	m.seq = 0

	p.mu.Lock()
	defer p.mu.Unlock()

	switch m.origin {
	case originGeneral:
		p.general = append(p.general, m)
	case originIRQ:
		p.irq = append(p.irq, m)
	case originDynamic:
		p.dynamic--
	}
}

// Stats returns a snapshot of pool usage
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		GeneralFree:  len(p.general),
		IRQFree:      len(p.irq),
		DynamicInUse: p.dynamic,
	}
}

func pop(list *[]*Message) *Message {
	l := *list
	if len(l) == 0 {
		return nil
	}
	m := l[len(l)-1]
	l[len(l)-1] = nil
	*list = l[:len(l)-1]
	return m
}
