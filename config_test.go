package modpipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepaliveTimeout = 0
	require.Error(t, cfg.Validate())

	cfg.KeepaliveTimeout = -time.Second
	require.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"keepalive_timeout: 90s\nshutdown_grace: 2s\nlog_level: debug\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.KeepaliveTimeout)
	require.Equal(t, 2*time.Second, cfg.ShutdownGrace)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigDefaultsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keepalive_timeout: 30s\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.KeepaliveTimeout)
	require.Equal(t, DefaultShutdownGrace, cfg.ShutdownGrace)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keepalive_timeout: soon\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MODPIPE_KEEPALIVE_TIMEOUT", "45s")
	t.Setenv("MODPIPE_SHUTDOWN_GRACE", "3s")
	t.Setenv("MODPIPE_LOG_LEVEL", "warn")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.KeepaliveTimeout)
	require.Equal(t, 3*time.Second, cfg.ShutdownGrace)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("MODPIPE_KEEPALIVE_TIMEOUT", "")
	t.Setenv("MODPIPE_SHUTDOWN_GRACE", "")
	t.Setenv("MODPIPE_LOG_LEVEL", "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestConfigFromEnvBadValue(t *testing.T) {
	t.Setenv("MODPIPE_KEEPALIVE_TIMEOUT", "whenever")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(level)
		require.NoError(t, err, "level %s", level)
		require.NotNil(t, logger)
	}

	_, err := NewLogger("chatty")
	require.Error(t, err)
}
