package workload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/baaaht/mqueue/internal/config"
	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/mqueue"
	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
	"golang.org/x/sync/errgroup"
)

// PoisonPriority is the priority of the shutdown marker. It is the lowest
// priority, so every data record queued before it is delivered first.
const PoisonPriority = 0

// Result summarizes one workload run
type Result struct {
	Sent       int           `json:"sent"`
	Received   int           `json:"received"`
	Timeouts   int           `json:"timeouts"`
	Poisoned   int           `json:"poisoned"`
	ByPriority map[int]int   `json:"by_priority"`
	Elapsed    time.Duration `json:"elapsed"`
}

// tally collects counters from concurrent producers and consumers
type tally struct {
	mu  sync.Mutex
	res Result
}

func (t *tally) sent() {
	t.mu.Lock()
	t.res.Sent++
	t.mu.Unlock()
}

func (t *tally) received(prio int) {
	t.mu.Lock()
	t.res.Received++
	t.res.ByPriority[prio]++
	t.mu.Unlock()
}

func (t *tally) timeout() {
	t.mu.Lock()
	t.res.Timeouts++
	t.mu.Unlock()
}

func (t *tally) poisoned() {
	t.mu.Lock()
	t.res.Poisoned++
	t.mu.Unlock()
}

// Runner drives producers and consumers over one named queue. Each side is a
// task in a shared group and holds its own descriptor; the group's exit
// closes every descriptor.
type Runner struct {
	cfg    config.WorkloadConfig
	reg    *mqueue.Registry
	sched  *sched.Scheduler
	logger *logger.Logger
}

// New creates a workload runner
func New(cfg config.WorkloadConfig, reg *mqueue.Registry, s *sched.Scheduler, log *logger.Logger) (*Runner, error) {
	if reg == nil || s == nil {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "registry and scheduler are required")
	}
	if log == nil {
		var err error
		log, err = logger.NewDefault()
		if err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "failed to create default logger", err)
		}
	}
	if cfg.MsgSize < RecordSize {
		return nil, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("message size must be at least %d", RecordSize))
	}
	if cfg.Producers <= 0 || cfg.Consumers <= 0 {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "workload needs at least one producer and one consumer")
	}
	if cfg.ProducerPrioMax < 0 || cfg.ProducerPrioMax > reg.PrioMax() {
		return nil, types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("producer priority must be between 0 and %d", reg.PrioMax()))
	}
	if cfg.ReceiveTimeout <= 0 {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "receive timeout must be positive")
	}

	return &Runner{
		cfg:    cfg,
		reg:    reg,
		sched:  s,
		logger: log.With("component", "workload"),
	}, nil
}

type member struct {
	task *sched.Task
	desc *mqueue.Descriptor
}

// Run executes the workload until every producer has finished and every
// consumer has taken its shutdown marker, or ctx is canceled.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	clock := r.reg.Clock()
	start := clock.Now()
	t := &tally{res: Result{ByPriority: make(map[int]int)}}

	group := r.sched.NewGroup("workload")
	owner, err := r.sched.Spawn(group, "workload-owner", sched.PriorityDefault)
	if err != nil {
		return nil, err
	}
	defer r.unlink()
	defer owner.Exit()

	ctl, err := r.reg.Open(owner, r.cfg.QueueName, mqueue.ORdWr|mqueue.OCreat, 0o600,
		&mqueue.Attr{MaxMsgs: r.cfg.Depth, MsgSize: r.cfg.MsgSize})
	if err != nil {
		return nil, err
	}

	producers, err := r.join(group, "producer", r.cfg.Producers, mqueue.OWrite)
	if err != nil {
		return nil, err
	}
	consumers, err := r.join(group, "consumer", r.cfg.Consumers, mqueue.ORead)
	if err != nil {
		exitAll(producers)
		return nil, err
	}

	r.logger.Info("Workload started",
		"queue", r.cfg.QueueName,
		"depth", r.cfg.Depth,
		"producers", len(producers),
		"consumers", len(consumers),
		"messages_per_producer", r.cfg.Messages)

	cg, cctx := errgroup.WithContext(ctx)
	for _, m := range consumers {
		m := m
		cg.Go(func() error {
			defer m.task.Exit()
			return r.consume(cctx, m, t)
		})
	}

	pg, pctx := errgroup.WithContext(ctx)
	for i, m := range producers {
		id, m := uint16(i), m
		pg.Go(func() error {
			defer m.task.Exit()
			return r.produce(pctx, m, id, t)
		})
	}

	perr := pg.Wait()
	if perr != nil {
		r.logger.Warn("Producer failed, shutting consumers down", "error", perr)
	}

	buf := make([]byte, RecordSize)
	for range consumers {
		poison := Record{Kind: KindPoison, SentAt: clock.Now().UnixNano()}
		if err := r.send(cctx, owner, ctl, poison.Encode(buf), PoisonPriority); err != nil {
			r.logger.Warn("Failed to send shutdown marker", "error", err)
			break
		}
	}

	cerr := cg.Wait()

	t.mu.Lock()
	res := t.res
	t.mu.Unlock()
	res.Elapsed = clock.Since(start)

	r.logger.Info("Workload finished",
		"sent", res.Sent,
		"received", res.Received,
		"timeouts", res.Timeouts,
		"elapsed", res.Elapsed)

	if perr != nil {
		return &res, perr
	}
	if cerr != nil {
		return &res, cerr
	}
	if res.Received != res.Sent {
		return &res, types.NewError(types.ErrCodeInternal,
			fmt.Sprintf("sent %d records but received %d", res.Sent, res.Received))
	}
	return &res, nil
}

// join spawns n tasks in group, each with its own descriptor on the queue
func (r *Runner) join(group *sched.Group, role string, n int, flags mqueue.Flag) ([]member, error) {
	members := make([]member, 0, n)
	for i := 0; i < n; i++ {
		task, err := r.sched.Spawn(group, fmt.Sprintf("%s-%d", role, i), sched.PriorityDefault)
		if err != nil {
			exitAll(members)
			return nil, err
		}
		d, err := r.reg.Open(task, r.cfg.QueueName, flags, 0, nil)
		if err != nil {
			task.Exit()
			exitAll(members)
			return nil, err
		}
		members = append(members, member{task: task, desc: d})
	}
	return members, nil
}

func exitAll(members []member) {
	for _, m := range members {
		m.task.Exit()
	}
}

func (r *Runner) produce(ctx context.Context, m member, id uint16, t *tally) error {
	clock := r.reg.Clock()
	buf := make([]byte, RecordSize)
	for seq := 0; seq < r.cfg.Messages; seq++ {
		rec := Record{Kind: KindData, Producer: id, Seq: uint32(seq), SentAt: clock.Now().UnixNano()}
		if err := r.send(ctx, m.task, m.desc, rec.Encode(buf), seq%(r.cfg.ProducerPrioMax+1)); err != nil {
			return err
		}
		t.sent()
	}
	return nil
}

// send blocks until the record is queued, retrying each bounded wait until ctx ends
func (r *Runner) send(ctx context.Context, task *sched.Task, d *mqueue.Descriptor, payload []byte, prio int) error {
	for {
		if err := ctx.Err(); err != nil {
			return types.WrapError(types.ErrCodeCanceled, "workload canceled", err)
		}
		deadline := r.reg.Clock().Now().Add(r.cfg.ReceiveTimeout)
		err := d.TimedSend(task, payload, prio, deadline)
		if err == nil || !types.IsErrCode(err, types.ErrCodeTimeout) {
			return err
		}
	}
}

func (r *Runner) consume(ctx context.Context, m member, t *tally) error {
	clock := r.reg.Clock()
	buf := make([]byte, r.cfg.MsgSize)
	for {
		deadline := clock.Now().Add(r.cfg.ReceiveTimeout)
		n, prio, err := m.desc.TimedReceive(m.task, buf, deadline)
		if err != nil {
			if !types.IsErrCode(err, types.ErrCodeTimeout) {
				return err
			}
			t.timeout()
			if ctx.Err() != nil {
				return types.WrapError(types.ErrCodeCanceled, "workload canceled", ctx.Err())
			}
			continue
		}

		rec, err := DecodeRecord(buf[:n])
		if err != nil {
			return err
		}
		if rec.Kind == KindPoison {
			t.poisoned()
			r.logger.Debug("Consumer stopping", "task", m.task.Name())
			return nil
		}
		t.received(prio)
	}
}

func (r *Runner) unlink() {
	if err := r.reg.Unlink(r.cfg.QueueName); err != nil {
		r.logger.Warn("Failed to unlink workload queue", "queue", r.cfg.QueueName, "error", err)
	}
}
