package mqueue

import (
	"testing"
	"time"

	"github.com/baaaht/mqueue/internal/config"
	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/stretchr/testify/require"
)

func testConfig() config.MQueueConfig {
	cfg := config.DefaultMQueueConfig()
	cfg.MaxQueues = 8
	cfg.MaxDescriptors = 16
	cfg.PreallocMsgs = 4
	cfg.PreallocIRQMsgs = 2
	return cfg
}

func newTestRegistry(t *testing.T, cfg config.MQueueConfig, opts ...Option) *Registry {
	t.Helper()
	r, err := New(cfg, logger.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	return r
}

func newTestScheduler() *sched.Scheduler {
	return sched.New(logger.NewNop())
}

func spawn(t *testing.T, s *sched.Scheduler, g *sched.Group, name string, prio sched.Priority) *sched.Task {
	t.Helper()
	task, err := s.Spawn(g, name, prio)
	require.NoError(t, err)
	return task
}

// smallQueue is the capacity 2, size 16 queue used throughout the scenarios
var smallQueue = &Attr{MaxMsgs: 2, MsgSize: 16}

type result struct {
	n    int
	prio int
	data string
	err  error
}

// receiveAsync runs a blocking receive on its own goroutine
func receiveAsync(d *Descriptor, task *sched.Task) <-chan result {
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, d.queue.msgSize)
		n, prio, err := d.Receive(task, buf)
		ch <- result{n: n, prio: prio, data: string(buf[:n]), err: err}
	}()
	return ch
}

func waitForWaiters(t *testing.T, d *Descriptor, recv, send int) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := d.Stats()
		return err == nil && st.RecvWaiters == recv && st.SendWaiters == send
	}, 2*time.Second, time.Millisecond)
}

func receiveNow(t *testing.T, d *Descriptor, task *sched.Task) (string, int) {
	t.Helper()
	buf := make([]byte, d.queue.msgSize)
	n, prio, err := d.Receive(task, buf)
	require.NoError(t, err)
	return string(buf[:n]), prio
}
