package mqueue

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/baaaht/mqueue/internal/config"
	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
	"github.com/jonboulle/clockwork"
)

// entry binds a name to a queue object
type entry struct {
	name            string
	queue           *Queue
	mode            os.FileMode
	openCount       int
	deleteRequested bool
}

// Registry is the table of named message queues
type Registry struct {
	mu          sync.Mutex
	entries     map[string]*entry
	descriptors int
	closed      bool

	cfg    config.MQueueConfig
	pool   *Pool
	clock  clockwork.Clock
	logger *logger.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock used for deadline timers
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// New creates a new queue registry
func New(cfg config.MQueueConfig, log *logger.Logger, opts ...Option) (*Registry, error) {
	if log == nil {
		var err error
		log, err = logger.NewDefault()
		if err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "failed to create default logger", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(types.ErrCodeInvalidArgument, "invalid mqueue configuration", err)
	}

	r := &Registry{
		entries: make(map[string]*entry),
		cfg:     cfg,
		pool:    NewPool(cfg.PreallocMsgs, cfg.PreallocIRQMsgs, cfg.MaxMsgSize),
		clock:   clockwork.NewRealClock(),
		logger:  log.With("component", "mqueue"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.logger.Info("Message queue registry initialized",
		"prio_max", cfg.PrioMax,
		"max_queues", cfg.MaxQueues,
		"max_msgs", cfg.MaxMsgs,
		"max_msg_size", cfg.MaxMsgSize,
		"prealloc_msgs", cfg.PreallocMsgs,
		"prealloc_irq_msgs", cfg.PreallocIRQMsgs)

	return r, nil
}

// NewDefault creates a registry with the default limits
func NewDefault(log *logger.Logger) (*Registry, error) {
	return New(config.DefaultMQueueConfig(), log)
}

// normalizeName strips a leading "/" and validates what remains
func (r *Registry) normalizeName(name string) (string, error) {
	n := strings.TrimPrefix(name, "/")
	if n == "" || strings.Contains(n, "/") {
		return "", types.NewError(types.ErrCodeInvalidArgument, "invalid queue name: "+name)
	}
	if len(n) > r.cfg.NameMax {
		return "", types.NewError(types.ErrCodeNameTooLong,
			fmt.Sprintf("queue name longer than %d bytes: %s", r.cfg.NameMax, name))
	}
	return n, nil
}

func (r *Registry) resolveAttr(attr *Attr) (Attr, error) {
	if attr == nil {
		return Attr{MaxMsgs: r.cfg.DefaultMaxMsgs, MsgSize: r.cfg.DefaultMsgSize}, nil
	}
	if attr.MaxMsgs <= 0 || attr.MaxMsgs > r.cfg.MaxMsgs {
		return Attr{}, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("max messages must be between 1 and %d", r.cfg.MaxMsgs))
	}
	if attr.MsgSize <= 0 || attr.MsgSize > r.cfg.MaxMsgSize {
		return Attr{}, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("message size must be between 1 and %d", r.cfg.MaxMsgSize))
	}
	return Attr{MaxMsgs: attr.MaxMsgs, MsgSize: attr.MsgSize}, nil
}

// Open opens the queue called name on behalf of t, creating it when flags
// include OCreat. The returned descriptor belongs to t's group.
func (r *Registry) Open(t *sched.Task, name string, flags Flag, mode os.FileMode, attr *Attr) (*Descriptor, error) {
	if t == nil {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "task cannot be nil")
	}
	if flags&(ORead|OWrite) == 0 {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "open flags must include read or write access")
	}
	key, err := r.normalizeName(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, types.NewError(types.ErrCodeUnavailable, "registry is shut down")
	}
	if r.descriptors >= r.cfg.MaxDescriptors {
		return nil, types.NewError(types.ErrCodeResourceExhausted, "no descriptors available")
	}

	e, exists := r.entries[key]
	created := false
	if exists {
		if flags&OCreat != 0 && flags&OExcl != 0 {
			return nil, types.NewError(types.ErrCodeAlreadyExists, "queue already exists: "+key)
		}
	} else {
		if flags&OCreat == 0 {
			return nil, types.NewError(types.ErrCodeNotFound, "queue does not exist: "+key)
		}
		a, err := r.resolveAttr(attr)
		if err != nil {
			return nil, err
		}
		if len(r.entries) >= r.cfg.MaxQueues {
			return nil, types.NewError(types.ErrCodeResourceExhausted, "no queues available")
		}
		e = &entry{
			name:  key,
			queue: newQueue(r, key, a),
			mode:  mode,
		}
		r.entries[key] = e
		created = true
	}

	d := &Descriptor{
		reg:   r,
		entry: e,
		queue: e.queue,
		group: t.Group(),
		flags: flags & (ORead | OWrite | ONonblock),
	}
	if err := d.group.Attach(d); err != nil {
		if created {
			delete(r.entries, key)
		}
		return nil, types.WrapError(types.ErrCodeInvalidArgument, "cannot attach descriptor to group", err)
	}
	e.openCount++
	r.descriptors++

	r.logger.Debug("Queue opened",
		"name", key,
		"created", created,
		"open_count", e.openCount,
		"task", t.ID(),
		"group", d.group.ID())

	return d, nil
}

// Close closes d. When d was the last reference to a queue whose deletion was
// requested, the queue is destroyed.
func (r *Registry) Close(d *Descriptor) error {
	if d == nil || d.reg != r {
		return types.NewError(types.ErrCodeInvalidArgument, "invalid descriptor")
	}
	if !d.closed.CompareAndSwap(false, true) {
		return types.NewError(types.ErrCodeInvalidArgument, "descriptor already closed")
	}
	d.group.Detach(d)

	r.mu.Lock()
	defer r.mu.Unlock()

	e := d.entry
	q := d.queue

	q.mu.Lock()
	if q.notify != nil && q.notify.owner == d {
		q.notify = nil
	}
	q.mu.Unlock()

	e.openCount--
	r.descriptors--
	invariant(r.logger, e.openCount >= 0, "negative open count", "queue", e.name, "open_count", e.openCount)

	if e.openCount <= 0 && e.deleteRequested {
		r.destroy(e)
	}

	r.logger.Debug("Queue closed",
		"name", e.name,
		"open_count", e.openCount,
		"delete_requested", e.deleteRequested)

	return nil
}

// Unlink removes name from the registry.
//
// A queue still open through more than one descriptor is not unlinked: the
// call fails with ErrCodeBusy and nothing changes. With a single open
// reference the name is released at once and the queue is destroyed when that
// descriptor closes; with none the queue is destroyed immediately.
func (r *Registry) Unlink(name string) error {
	key, err := r.normalizeName(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return types.NewError(types.ErrCodeNotFound, "queue does not exist: "+key)
	}
	if e.openCount > 1 {
		return types.NewError(types.ErrCodeBusy,
			fmt.Sprintf("queue %s is open %d times", key, e.openCount))
	}

	e.deleteRequested = true
	delete(r.entries, key)
	if e.openCount == 0 {
		r.destroy(e)
	}

	r.logger.Debug("Queue unlinked", "name", key, "open_count", e.openCount)
	return nil
}

// destroy frees the queue's messages and resumes anything still blocked on it.
// Called with r.mu held.
func (r *Registry) destroy(e *entry) {
	if cur, ok := r.entries[e.name]; ok && cur == e {
		delete(r.entries, e.name)
	}

	q := e.queue
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true
	dropped := q.drain()
	var stranded []*waiter
	for w := q.recvWaiters.popFirst(); w != nil; w = q.recvWaiters.popFirst() {
		stranded = append(stranded, w)
	}
	for w := q.sendWaiters.popFirst(); w != nil; w = q.sendWaiters.popFirst() {
		stranded = append(stranded, w)
	}
	q.notify = nil
	q.mu.Unlock()

	for _, w := range stranded {
		w.resume(wakeDestroyed)
	}

	r.logger.Debug("Queue destroyed",
		"name", e.name,
		"dropped_messages", dropped,
		"stranded_waiters", len(stranded))
}

// EntryInfo describes one registered queue
type EntryInfo struct {
	Name      string      `json:"name"`
	OpenCount int         `json:"open_count"`
	Mode      os.FileMode `json:"mode"`
	Stats     QueueStats  `json:"stats"`
}

// List returns a snapshot of the registered queues sorted by name
func (r *Registry) List() []EntryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]EntryInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, EntryInfo{
			Name:      e.name,
			OpenCount: e.openCount,
			Mode:      e.mode,
			Stats:     e.queue.Stats(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Lookup returns the info of one registered queue
func (r *Registry) Lookup(name string) (EntryInfo, error) {
	key, err := r.normalizeName(name)
	if err != nil {
		return EntryInfo{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return EntryInfo{}, types.NewError(types.ErrCodeNotFound, "queue does not exist: "+key)
	}
	return EntryInfo{Name: e.name, OpenCount: e.openCount, Mode: e.mode, Stats: e.queue.Stats()}, nil
}

// Descriptors returns the number of open descriptors across all queues
func (r *Registry) Descriptors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.descriptors
}

// PoolStats returns the message pool usage
func (r *Registry) PoolStats() PoolStats {
	return r.pool.Stats()
}

// Clock returns the clock deadlines are measured against
func (r *Registry) Clock() clockwork.Clock {
	return r.clock
}

// PrioMax returns the highest accepted message priority
func (r *Registry) PrioMax() int {
	return r.cfg.PrioMax
}

// Shutdown destroys every registered queue. Open descriptors stay valid for
// Close but their queues no longer hold messages or waiters.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, e := range r.entries {
		e.deleteRequested = true
		r.destroy(e)
	}
	r.logger.Info("Message queue registry shut down")
}
