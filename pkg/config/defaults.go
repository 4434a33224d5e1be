package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills in any unspecified configuration fields with sensible
// defaults. Zero values (0, "", false) are replaced; explicit values are
// preserved.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminDefaults(&cfg.Admin)
	applyCacheDefaults(&cfg.Cache)
	applyProfilingDefaults(&cfg.Profiling)
}

// applyServerDefaults sets the TFTP engine defaults: a 250ms config-reload
// debounce, a 5-attempt retry budget, and a 3s per-packet timeout.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "0.0.0.0:69"
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.RetryBudget == 0 {
		cfg.RetryBudget = 5
	}
	if cfg.PacketTimeout == 0 {
		cfg.PacketTimeout = 3 * time.Second
	}
	if cfg.ConfigDebounce == 0 {
		cfg.ConfigDebounce = 250 * time.Millisecond
	}
	if cfg.WarmPool.Workers == 0 {
		cfg.WarmPool.Workers = 4
	}
	if cfg.WarmPool.QueueSize == 0 {
		cfg.WarmPool.QueueSize = 64
	}
}

// applyLoggingDefaults sets logging defaults and normalizes the level to
// uppercase for consistent internal representation.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyMetricsDefaults sets metrics defaults. Metrics are opt-in.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false; no zero-value field to set otherwise.
}

// applyAdminDefaults sets admin HTTP surface defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:8222"
	}
}

// applyCacheDefaults sets stat-cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Path == "" {
		cfg.Path = "/var/lib/rtftpd/statcache"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Second
	}
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rtftpd"
	}
}

// GetDefaultConfig returns a Config with all default values applied, useful
// for generating sample configuration files and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			TFTPRoot: "/srv/tftp",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
