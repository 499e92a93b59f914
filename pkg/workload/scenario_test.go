package workload

import (
	"testing"

	"github.com/baaaht/mqueue/internal/config"
	"github.com/baaaht/mqueue/internal/logger"
	"github.com/baaaht/mqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScenarios(t *testing.T) {
	results := RunScenarios(config.DefaultMQueueConfig(), logger.NewNop())
	require.Len(t, results, len(Scenarios()))

	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Error)
	}
}

func TestRunScenariosInvalidConfig(t *testing.T) {
	cfg := config.DefaultMQueueConfig()
	cfg.MaxQueues = 0

	for _, r := range RunScenarios(cfg, nil) {
		assert.False(t, r.Passed)
		assert.NotEmpty(t, r.Error)
	}
}

func TestRunScenariosWithoutPreallocation(t *testing.T) {
	cfg := config.DefaultMQueueConfig()
	cfg.PreallocMsgs = 0
	cfg.PreallocIRQMsgs = 0

	for _, r := range RunScenarios(cfg, logger.NewNop()) {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Error)
	}
}

func TestExpectErrorsAreCoded(t *testing.T) {
	assert.NoError(t, expect("data", "a", "a"))
	err := expect("data", "a", "b")
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInternal))

	assert.NoError(t, expectCode(types.NewError(types.ErrCodeBusy, "busy"), types.ErrCodeBusy))
	err = expectCode(nil, types.ErrCodeBusy)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInternal))
}
