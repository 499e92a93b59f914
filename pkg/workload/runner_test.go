package workload

import (
	"context"
	"testing"
	"time"

	"github.com/baaaht/mqueue/internal/config"
	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/mqueue"
	"github.com/baaaht/mqueue/pkg/sched"
	"github.com/baaaht/mqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, cfg config.WorkloadConfig) (*Runner, *mqueue.Registry, *sched.Scheduler) {
	t.Helper()
	reg, err := mqueue.New(config.DefaultMQueueConfig(), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(reg.Shutdown)
	s := sched.New(logger.NewNop())

	r, err := New(cfg, reg, s, logger.NewNop())
	require.NoError(t, err)
	return r, reg, s
}

func TestRunDeliversEverything(t *testing.T) {
	cfg := config.DefaultWorkloadConfig()
	cfg.Depth = 4
	cfg.Producers = 3
	cfg.Consumers = 2
	cfg.Messages = 40
	cfg.ProducerPrioMax = 3
	r, reg, s := newTestRunner(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, res.Sent)
	assert.Equal(t, 120, res.Received)
	assert.Equal(t, 2, res.Poisoned)
	assert.Equal(t, map[int]int{0: 30, 1: 30, 2: 30, 3: 30}, res.ByPriority)

	// Group exit closed every descriptor and the queue was unlinked
	assert.Equal(t, 0, reg.Descriptors())
	assert.Empty(t, reg.List())
	assert.Equal(t, 0, s.TaskCount())
	assert.Equal(t, 0, reg.PoolStats().DynamicInUse)
}

func TestRunZeroMessages(t *testing.T) {
	cfg := config.DefaultWorkloadConfig()
	cfg.Messages = 0
	r, _, _ := newTestRunner(t, cfg)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Received)
	assert.Equal(t, cfg.Consumers, res.Poisoned)
}

func TestRunCanceled(t *testing.T) {
	cfg := config.DefaultWorkloadConfig()
	cfg.ReceiveTimeout = 20 * time.Millisecond
	r, reg, s := newTestRunner(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeCanceled))
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Sent)

	assert.Equal(t, 0, reg.Descriptors())
	assert.Equal(t, 0, s.TaskCount())
}

func TestRunAttachesToExistingQueue(t *testing.T) {
	cfg := config.DefaultWorkloadConfig()
	cfg.Messages = 5
	r, reg, s := newTestRunner(t, cfg)

	other, err := s.Spawn(nil, "observer", sched.PriorityDefault)
	require.NoError(t, err)
	d, err := reg.Open(other, cfg.QueueName, mqueue.ORead|mqueue.OCreat, 0o600,
		&mqueue.Attr{MaxMsgs: cfg.Depth, MsgSize: cfg.MsgSize})
	require.NoError(t, err)
	defer d.Close()

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Sent, res.Received)

	// The observer still holds the queue, so the final unlink released only the name
	st, err := d.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurMsgs)
	assert.Empty(t, reg.List())
}

func TestNewValidation(t *testing.T) {
	reg, err := mqueue.New(config.DefaultMQueueConfig(), logger.NewNop())
	require.NoError(t, err)
	s := sched.New(logger.NewNop())

	tests := []struct {
		name   string
		mutate func(*config.WorkloadConfig)
	}{
		{"small messages", func(c *config.WorkloadConfig) { c.MsgSize = RecordSize - 1 }},
		{"no producers", func(c *config.WorkloadConfig) { c.Producers = 0 }},
		{"no consumers", func(c *config.WorkloadConfig) { c.Consumers = 0 }},
		{"priority above max", func(c *config.WorkloadConfig) { c.ProducerPrioMax = reg.PrioMax() + 1 }},
		{"no timeout", func(c *config.WorkloadConfig) { c.ReceiveTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultWorkloadConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, reg, s, logger.NewNop())
			require.Error(t, err)
			assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
		})
	}

	_, err = New(config.DefaultWorkloadConfig(), nil, s, nil)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}
