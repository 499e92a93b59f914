package config

import (
	"os"
	"path/filepath"
	"time"
)

// testConfigPath is an override for the default config path used in testing
// If set, GetDefaultConfigPath will return this value instead of the standard path
var testConfigPath string

// SetTestConfigPath sets a custom config path for testing purposes
// This should only be called from tests
func SetTestConfigPath(path string) {
	testConfigPath = path
}

// GetConfigDir returns the mqueue configuration directory
// Uses ~/.config/mqueue/ on Unix systems
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "mqueue"), nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() (string, error) {
	if testConfigPath != "" {
		return testConfigPath, nil
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

const (
	// Environment variable names
	EnvLogLevel        = "MQ_LOG_LEVEL"
	EnvLogFormat       = "MQ_LOG_FORMAT"
	EnvLogOutput       = "MQ_LOG_OUTPUT"
	EnvPrioMax         = "MQ_PRIO_MAX"
	EnvNameMax         = "MQ_NAME_MAX"
	EnvMaxQueues       = "MQ_MAX_QUEUES"
	EnvMaxDescriptors  = "MQ_MAX_DESCRIPTORS"
	EnvMaxMsgs         = "MQ_MAX_MSGS"
	EnvMaxMsgSize      = "MQ_MAX_MSG_SIZE"
	EnvPreallocMsgs    = "MQ_PREALLOC_MSGS"
	EnvPreallocIRQMsgs = "MQ_PREALLOC_IRQ_MSGS"
	EnvWorkloadQueue   = "MQ_WORKLOAD_QUEUE"
	EnvWorkloadTimeout = "MQ_WORKLOAD_RECEIVE_TIMEOUT"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// DefaultPrioMax mirrors _POSIX_MQ_PRIO_MAX
	DefaultPrioMax        = 32
	DefaultNameMax        = 32
	DefaultMaxQueues      = 64
	DefaultMaxDescriptors = 256
	DefaultMaxMsgs        = 8
	DefaultMsgSize        = 32
	DefaultMaxMsgsLimit   = 256
	DefaultMaxMsgSize     = 1024
	DefaultPreallocMsgs   = 32
	DefaultPreallocIRQ    = 8

	// WorkloadMinMsgSize fits the workload message header
	WorkloadMinMsgSize = 16
)

// DefaultLoggingConfig returns the default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
		Output: "stdout",
	}
}

// DefaultMQueueConfig returns the default message queue limits
func DefaultMQueueConfig() MQueueConfig {
	return MQueueConfig{
		PrioMax:         DefaultPrioMax,
		NameMax:         DefaultNameMax,
		MaxQueues:       DefaultMaxQueues,
		MaxDescriptors:  DefaultMaxDescriptors,
		DefaultMaxMsgs:  DefaultMaxMsgs,
		DefaultMsgSize:  DefaultMsgSize,
		MaxMsgs:         DefaultMaxMsgsLimit,
		MaxMsgSize:      DefaultMaxMsgSize,
		PreallocMsgs:    DefaultPreallocMsgs,
		PreallocIRQMsgs: DefaultPreallocIRQ,
	}
}

// DefaultWorkloadConfig returns the default workload configuration
func DefaultWorkloadConfig() WorkloadConfig {
	return WorkloadConfig{
		QueueName:       "/workload",
		Depth:           16,
		MsgSize:         32,
		Producers:       2,
		Consumers:       2,
		Messages:        100,
		ReceiveTimeout:  2 * time.Second,
		ProducerPrioMax: 8,
	}
}
