package modpipe

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Defaults. The five-minute keepalive timeout matches what routers
// conventionally expect from a worker module.
const (
	DefaultKeepaliveTimeout = 5 * time.Minute
	DefaultShutdownGrace    = 5 * time.Second
	DefaultLogLevel         = "info"
)

// Config is the module runtime configuration. It is immutable once a
// Module has been constructed from it.
type Config struct {
	// KeepaliveTimeout is how long the router may stay silent before the
	// module self-terminates. Must be positive.
	KeepaliveTimeout time.Duration

	// ShutdownGrace bounds the in-flight call drain during shutdown.
	ShutdownGrace time.Duration

	// LogLevel feeds NewLogger: debug, info, warn, or error.
	LogLevel string
}

func DefaultConfig() Config {
	return Config{
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		ShutdownGrace:    DefaultShutdownGrace,
		LogLevel:         DefaultLogLevel,
	}
}

// Validate reports whether the configuration can run a module.
func (c Config) Validate() error {
	if c.KeepaliveTimeout <= 0 {
		return fmt.Errorf("keepalive timeout must be positive, got %s", c.KeepaliveTimeout)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace must be positive, got %s", c.ShutdownGrace)
	}
	return nil
}

// UnmarshalYAML decodes durations from human-readable strings ("90s",
// "5m"). Absent fields keep their zero value; LoadConfig fills defaults
// afterwards.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		KeepaliveTimeout string `yaml:"keepalive_timeout"`
		ShutdownGrace    string `yaml:"shutdown_grace"`
		LogLevel         string `yaml:"log_level"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if raw.KeepaliveTimeout != "" {
		d, err := time.ParseDuration(raw.KeepaliveTimeout)
		if err != nil {
			return fmt.Errorf("keepalive_timeout: %w", err)
		}
		c.KeepaliveTimeout = d
	}
	if raw.ShutdownGrace != "" {
		d, err := time.ParseDuration(raw.ShutdownGrace)
		if err != nil {
			return fmt.Errorf("shutdown_grace: %w", err)
		}
		c.ShutdownGrace = d
	}
	c.LogLevel = raw.LogLevel
	return nil
}

// LoadConfig reads a YAML config file. Missing fields fall back to
// defaults; a missing file is an error so that a mistyped path does not
// silently run with defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// ConfigFromEnv builds a Config from MODPIPE_KEEPALIVE_TIMEOUT,
// MODPIPE_SHUTDOWN_GRACE, and MODPIPE_LOG_LEVEL. Unset variables fall back
// to defaults — the router decides which knobs to expose to its children.
func ConfigFromEnv() (Config, error) {
	cfg := Config{LogLevel: os.Getenv("MODPIPE_LOG_LEVEL")}

	if v := os.Getenv("MODPIPE_KEEPALIVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("MODPIPE_KEEPALIVE_TIMEOUT: %w", err)
		}
		cfg.KeepaliveTimeout = d
	}
	if v := os.Getenv("MODPIPE_SHUTDOWN_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("MODPIPE_SHUTDOWN_GRACE: %w", err)
		}
		cfg.ShutdownGrace = d
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = DefaultKeepaliveTimeout
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// NewLogger builds a production zap logger at the given level, writing to
// stderr. stdout is the data plane: a single stray log line there corrupts
// the frame stream.
func NewLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, errors.New("unknown log level: " + level)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
