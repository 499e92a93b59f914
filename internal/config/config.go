package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/baaaht/mqueue/pkg/types"
)

// Config represents the complete configuration for the message queue kernel
type Config struct {
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	MQueue   MQueueConfig   `json:"mqueue" yaml:"mqueue"`
	Workload WorkloadConfig `json:"workload" yaml:"workload"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, file path
}

// MQueueConfig contains the build-time limits of the message queue subsystem
type MQueueConfig struct {
	PrioMax         int `json:"prio_max" yaml:"prio_max"`                   // highest message priority accepted
	NameMax         int `json:"name_max" yaml:"name_max"`                   // longest queue name, leading "/" excluded
	MaxQueues       int `json:"max_queues" yaml:"max_queues"`               // registry entries
	MaxDescriptors  int `json:"max_descriptors" yaml:"max_descriptors"`     // open descriptors across all groups
	DefaultMaxMsgs  int `json:"default_max_msgs" yaml:"default_max_msgs"`   // depth when open is called without attributes
	DefaultMsgSize  int `json:"default_msg_size" yaml:"default_msg_size"`   // message size when open is called without attributes
	MaxMsgs         int `json:"max_msgs" yaml:"max_msgs"`                   // upper bound for a queue's depth
	MaxMsgSize      int `json:"max_msg_size" yaml:"max_msg_size"`           // upper bound for a queue's message size
	PreallocMsgs    int `json:"prealloc_msgs" yaml:"prealloc_msgs"`         // general message reserve
	PreallocIRQMsgs int `json:"prealloc_irq_msgs" yaml:"prealloc_irq_msgs"` // interrupt-only message reserve
}

// WorkloadConfig describes the producer/consumer workload driven by `mq run`
type WorkloadConfig struct {
	QueueName       string        `json:"queue_name" yaml:"queue_name"`
	Depth           int           `json:"depth" yaml:"depth"`
	MsgSize         int           `json:"msg_size" yaml:"msg_size"`
	Producers       int           `json:"producers" yaml:"producers"`
	Consumers       int           `json:"consumers" yaml:"consumers"`
	Messages        int           `json:"messages" yaml:"messages"` // per producer
	ReceiveTimeout  time.Duration `json:"receive_timeout" yaml:"receive_timeout"`
	ProducerPrioMax int           `json:"producer_prio_max" yaml:"producer_prio_max"`
}

// applyDefaults fills in zero-valued config fields with their defaults.
// This is called after loading from YAML so partial configs get sensible values.
func applyDefaults(cfg *Config) {
	defaultLogging := DefaultLoggingConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLogging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defaultLogging.Output
	}

	defaultMQ := DefaultMQueueConfig()
	if cfg.MQueue.PrioMax == 0 {
		cfg.MQueue.PrioMax = defaultMQ.PrioMax
	}
	if cfg.MQueue.NameMax == 0 {
		cfg.MQueue.NameMax = defaultMQ.NameMax
	}
	if cfg.MQueue.MaxQueues == 0 {
		cfg.MQueue.MaxQueues = defaultMQ.MaxQueues
	}
	if cfg.MQueue.MaxDescriptors == 0 {
		cfg.MQueue.MaxDescriptors = defaultMQ.MaxDescriptors
	}
	if cfg.MQueue.DefaultMaxMsgs == 0 {
		cfg.MQueue.DefaultMaxMsgs = defaultMQ.DefaultMaxMsgs
	}
	if cfg.MQueue.DefaultMsgSize == 0 {
		cfg.MQueue.DefaultMsgSize = defaultMQ.DefaultMsgSize
	}
	if cfg.MQueue.MaxMsgs == 0 {
		cfg.MQueue.MaxMsgs = defaultMQ.MaxMsgs
	}
	if cfg.MQueue.MaxMsgSize == 0 {
		cfg.MQueue.MaxMsgSize = defaultMQ.MaxMsgSize
	}
	if cfg.MQueue.PreallocMsgs == 0 {
		cfg.MQueue.PreallocMsgs = defaultMQ.PreallocMsgs
	}
	if cfg.MQueue.PreallocIRQMsgs == 0 {
		cfg.MQueue.PreallocIRQMsgs = defaultMQ.PreallocIRQMsgs
	}

	defaultWorkload := DefaultWorkloadConfig()
	if cfg.Workload.QueueName == "" {
		cfg.Workload.QueueName = defaultWorkload.QueueName
	}
	if cfg.Workload.Depth == 0 {
		cfg.Workload.Depth = defaultWorkload.Depth
	}
	if cfg.Workload.MsgSize == 0 {
		cfg.Workload.MsgSize = defaultWorkload.MsgSize
	}
	if cfg.Workload.Producers == 0 {
		cfg.Workload.Producers = defaultWorkload.Producers
	}
	if cfg.Workload.Consumers == 0 {
		cfg.Workload.Consumers = defaultWorkload.Consumers
	}
	if cfg.Workload.Messages == 0 {
		cfg.Workload.Messages = defaultWorkload.Messages
	}
	if cfg.Workload.ReceiveTimeout == 0 {
		cfg.Workload.ReceiveTimeout = defaultWorkload.ReceiveTimeout
	}
	if cfg.Workload.ProducerPrioMax == 0 {
		cfg.Workload.ProducerPrioMax = defaultWorkload.ProducerPrioMax
	}
}

// applyEnvOverrides overrides configuration values from MQ_* environment variables
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvLogOutput); v != "" {
		cfg.Logging.Output = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{EnvPrioMax, &cfg.MQueue.PrioMax},
		{EnvNameMax, &cfg.MQueue.NameMax},
		{EnvMaxQueues, &cfg.MQueue.MaxQueues},
		{EnvMaxDescriptors, &cfg.MQueue.MaxDescriptors},
		{EnvMaxMsgs, &cfg.MQueue.MaxMsgs},
		{EnvMaxMsgSize, &cfg.MQueue.MaxMsgSize},
		{EnvPreallocMsgs, &cfg.MQueue.PreallocMsgs},
		{EnvPreallocIRQMsgs, &cfg.MQueue.PreallocIRQMsgs},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid value for "+o.env, err)
		}
		*o.dst = n
	}

	if v := os.Getenv(EnvWorkloadQueue); v != "" {
		cfg.Workload.QueueName = v
	}
	if v := os.Getenv(EnvWorkloadTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid value for "+EnvWorkloadTimeout, err)
		}
		cfg.Workload.ReceiveTimeout = d
	}

	return nil
}

// Load loads configuration from the default config file (if present),
// environment variables and defaults
func Load() (*Config, error) {
	var cfg *Config

	configPath, err := GetDefaultConfigPath()
	if err == nil {
		if _, err := os.Stat(configPath); err == nil {
			cfg, err = LoadFromFile(configPath)
			if err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to check config file: %w", err)
		}
	}

	if cfg == nil {
		cfg = Default()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration populated entirely from defaults
func Default() *Config {
	return &Config{
		Logging:  DefaultLoggingConfig(),
		MQueue:   DefaultMQueueConfig(),
		Workload: DefaultWorkloadConfig(),
	}
}

// Validate checks the configuration for validity
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log format: %s (must be json or text)", c.Logging.Format))
	}

	if err := c.MQueue.Validate(); err != nil {
		return err
	}

	w := c.Workload
	if w.QueueName == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "workload queue name cannot be empty")
	}
	if w.Depth <= 0 || w.Depth > c.MQueue.MaxMsgs {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("workload depth must be between 1 and %d", c.MQueue.MaxMsgs))
	}
	if w.MsgSize < WorkloadMinMsgSize || w.MsgSize > c.MQueue.MaxMsgSize {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("workload msg size must be between %d and %d", WorkloadMinMsgSize, c.MQueue.MaxMsgSize))
	}
	if w.Producers <= 0 || w.Consumers <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "workload needs at least one producer and one consumer")
	}
	if w.Messages < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "workload messages cannot be negative")
	}
	if w.ReceiveTimeout <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "workload receive timeout must be positive")
	}
	if w.ProducerPrioMax < 0 || w.ProducerPrioMax > c.MQueue.PrioMax {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("workload producer prio max must be between 0 and %d", c.MQueue.PrioMax))
	}

	return nil
}

// Validate checks the message queue limits for validity
func (c MQueueConfig) Validate() error {
	if c.PrioMax <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "mqueue prio max must be positive")
	}
	if c.NameMax <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "mqueue name max must be positive")
	}
	if c.MaxQueues <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "mqueue max queues must be positive")
	}
	if c.MaxDescriptors <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "mqueue max descriptors must be positive")
	}
	if c.MaxMsgs <= 0 || c.MaxMsgSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "mqueue message limits must be positive")
	}
	if c.DefaultMaxMsgs <= 0 || c.DefaultMaxMsgs > c.MaxMsgs {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("mqueue default max msgs must be between 1 and %d", c.MaxMsgs))
	}
	if c.DefaultMsgSize <= 0 || c.DefaultMsgSize > c.MaxMsgSize {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("mqueue default msg size must be between 1 and %d", c.MaxMsgSize))
	}
	if c.PreallocMsgs < 0 || c.PreallocIRQMsgs < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "mqueue message reserves cannot be negative")
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Logging: %s, MQueue: %s, Workload: %s}",
		c.Logging, c.MQueue, c.Workload)
}

func (c LoggingConfig) String() string {
	return fmt.Sprintf("LoggingConfig{Level: %s, Format: %s, Output: %s}",
		c.Level, c.Format, c.Output)
}

func (c MQueueConfig) String() string {
	return fmt.Sprintf("MQueueConfig{PrioMax: %d, MaxQueues: %d, MaxMsgs: %d, MaxMsgSize: %d, Prealloc: %d/%d}",
		c.PrioMax, c.MaxQueues, c.MaxMsgs, c.MaxMsgSize, c.PreallocMsgs, c.PreallocIRQMsgs)
}

func (c WorkloadConfig) String() string {
	return fmt.Sprintf("WorkloadConfig{Queue: %s, Depth: %d, MsgSize: %d, Producers: %d, Consumers: %d, Messages: %d}",
		c.QueueName, c.Depth, c.MsgSize, c.Producers, c.Consumers, c.Messages)
}
