package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baaaht/mqueue/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultPrioMax, cfg.MQueue.PrioMax)
	assert.Equal(t, "/workload", cfg.Workload.QueueName)
	assert.Contains(t, cfg.String(), "MQueueConfig{PrioMax: 32")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero prio max", func(c *Config) { c.MQueue.PrioMax = 0 }},
		{"zero name max", func(c *Config) { c.MQueue.NameMax = 0 }},
		{"default depth above limit", func(c *Config) { c.MQueue.DefaultMaxMsgs = c.MQueue.MaxMsgs + 1 }},
		{"default size above limit", func(c *Config) { c.MQueue.DefaultMsgSize = c.MQueue.MaxMsgSize + 1 }},
		{"negative reserve", func(c *Config) { c.MQueue.PreallocIRQMsgs = -1 }},
		{"empty workload queue", func(c *Config) { c.Workload.QueueName = "" }},
		{"workload depth above limit", func(c *Config) { c.Workload.Depth = c.MQueue.MaxMsgs + 1 }},
		{"workload msg size too small", func(c *Config) { c.Workload.MsgSize = WorkloadMinMsgSize - 1 }},
		{"no consumers", func(c *Config) { c.Workload.Consumers = 0 }},
		{"producer priority above max", func(c *Config) { c.Workload.ProducerPrioMax = c.MQueue.PrioMax + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
		})
	}

	cfg := Default()
	cfg.Workload.ProducerPrioMax = cfg.MQueue.PrioMax
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("MQ_TEST_QUEUE", "/sensors")
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
mqueue:
  prio_max: 16
  max_msgs: 64
workload:
  queue_name: ${MQ_TEST_QUEUE}
  producers: 4
  receive_timeout: 250ms
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, 16, cfg.MQueue.PrioMax)
	assert.Equal(t, 64, cfg.MQueue.MaxMsgs)
	assert.Equal(t, DefaultMaxMsgSize, cfg.MQueue.MaxMsgSize)
	assert.Equal(t, "/sensors", cfg.Workload.QueueName)
	assert.Equal(t, 4, cfg.Workload.Producers)
	assert.Equal(t, 250*time.Millisecond, cfg.Workload.ReceiveTimeout)
	assert.Equal(t, DefaultWorkloadConfig().Consumers, cfg.Workload.Consumers)
}

func TestLoadFromFileInterpolationDefault(t *testing.T) {
	path := writeConfig(t, "config.yml", "workload:\n  queue_name: ${MQ_UNSET_QUEUE_VAR:-/fallback}\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/fallback", cfg.Workload.QueueName)
}

func TestLoadFromFileUppercaseExtension(t *testing.T) {
	path := writeConfig(t, "config.YML", "mqueue:\n  prio_max: 8\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MQueue.PrioMax)
	assert.Equal(t, DefaultWorkloadConfig().QueueName, cfg.Workload.QueueName)
}

func TestLoadFromFileErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantCode string
	}{
		{"wrong extension", func(t *testing.T) string { return writeConfig(t, "config.json", "{}") }, types.ErrCodeInvalidArgument},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.yaml") }, types.ErrCodeNotFound},
		{"zero length file", func(t *testing.T) string { return writeConfig(t, "zero.yaml", "") }, types.ErrCodeInvalid},
		{"whitespace only file", func(t *testing.T) string { return writeConfig(t, "empty.yaml", "  \n") }, types.ErrCodeInvalid},
		{"bad syntax", func(t *testing.T) string { return writeConfig(t, "bad.yaml", "mqueue: [unterminated") }, types.ErrCodeInvalid},
		{"wrong type", func(t *testing.T) string { return writeConfig(t, "type.yaml", "mqueue:\n  prio_max: lots\n") }, types.ErrCodeInvalid},
		{"fails validation", func(t *testing.T) string { return writeConfig(t, "val.yaml", "logging:\n  level: loud\n") }, types.ErrCodeInvalid},
		{"limits do not fit", func(t *testing.T) string {
			return writeConfig(t, "limits.yaml", "mqueue:\n  max_msgs: 4\n  default_max_msgs: 8\n")
		}, types.ErrCodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(tt.path(t))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	SetTestConfigPath(filepath.Join(t.TempDir(), "absent.yaml"))
	defer SetTestConfigPath("")

	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvMaxQueues, "12")
	t.Setenv(EnvPreallocIRQMsgs, "3")
	t.Setenv(EnvWorkloadTimeout, "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 12, cfg.MQueue.MaxQueues)
	assert.Equal(t, 3, cfg.MQueue.PreallocIRQMsgs)
	assert.Equal(t, 5*time.Second, cfg.Workload.ReceiveTimeout)
}

func TestLoadPrefersFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "mqueue:\n  max_queues: 5\n")
	SetTestConfigPath(path)
	defer SetTestConfigPath("")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MQueue.MaxQueues)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	SetTestConfigPath(filepath.Join(t.TempDir(), "absent.yaml"))
	defer SetTestConfigPath("")

	t.Setenv(EnvPrioMax, "high")
	_, err := Load()
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))

	t.Setenv(EnvPrioMax, "")
	t.Setenv(EnvWorkloadTimeout, "soon")
	_, err = Load()
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestGetDefaultConfigPath(t *testing.T) {
	SetTestConfigPath("")
	path, err := GetDefaultConfigPath()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, "mqueue", filepath.Base(filepath.Dir(path)))
}
