package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsServer(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "0.0.0.0:69", cfg.Server.ListenAddress)
	assert.Equal(t, 5*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 5, cfg.Server.RetryBudget)
	assert.Equal(t, 3*time.Second, cfg.Server.PacketTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.ConfigDebounce)
	assert.Equal(t, 4, cfg.Server.WarmPool.Workers)
	assert.Equal(t, 64, cfg.Server.WarmPool.QueueSize)
}

func TestApplyDefaultsLogging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestApplyDefaultsLoggingUppercasesExplicitLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestApplyDefaultsAdmin(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "127.0.0.1:8222", cfg.Admin.ListenAddress)
	assert.False(t, cfg.Admin.Enabled)
}

func TestApplyDefaultsMetricsStaysDisabled(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.False(t, cfg.Metrics.Enabled)
}

func TestApplyDefaultsCache(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "/var/lib/rtftpd/statcache", cfg.Cache.Path)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
}

func TestApplyDefaultsProfiling(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "http://localhost:4040", cfg.Profiling.Endpoint)
	assert.Equal(t, "rtftpd", cfg.Profiling.ServiceName)
	assert.False(t, cfg.Profiling.Enabled)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0:1069",
			IdleTimeout:   10 * time.Minute,
			RetryBudget:   8,
		},
		Logging: LoggingConfig{
			Level:  "WARN",
			Format: "json",
			Output: "/var/log/rtftpd.log",
		},
		Admin: AdminConfig{
			Enabled:       true,
			ListenAddress: "127.0.0.1:9999",
		},
	}

	ApplyDefaults(cfg)

	assert.Equal(t, "0.0.0.0:1069", cfg.Server.ListenAddress)
	assert.Equal(t, 10*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 8, cfg.Server.RetryBudget)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/log/rtftpd.log", cfg.Logging.Output)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Admin.ListenAddress)
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.NoError(t, Validate(cfg))
}

func TestGetDefaultConfigHasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.NotEmpty(t, cfg.Server.ListenAddress)
	assert.NotEmpty(t, cfg.Server.TFTPRoot)
	assert.NotEmpty(t, cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Cache.Path)
}
