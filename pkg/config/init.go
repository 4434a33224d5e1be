package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const sampleConfigTemplate = `# RTFTP Configuration File
#
# Generated by 'rtftpd init'. All values below are equivalent to the
# built-in defaults; edit whichever you want to override.
# Every key can also be set via an RTFTPD_<SECTION>_<KEY> environment
# variable, e.g. RTFTPD_LOGGING_LEVEL=DEBUG.

server:
  listen_address: "%s"
  tftp_root: "%s"
  idle_timeout: %s
  proactive_warming: false
  retry_budget: %d
  packet_timeout: %s
  config_debounce: %s
  warm_pool:
    workers: %d
    queue_size: %d

logging:
  level: "%s"
  format: "%s"
  output: "%s"

metrics:
  enabled: false

admin:
  enabled: false
  listen_address: "%s"

cache:
  path: "%s"
  ttl: %s

profiling:
  enabled: false
  endpoint: "%s"
  service_name: "%s"
`

// InitConfig writes a starter configuration file to the default location.
// It refuses to overwrite an existing file unless force is true.
func InitConfig(force bool) (string, error) {
	return InitConfigToPath(GetDefaultConfigPath(), force)
}

// InitConfigToPath writes a starter configuration file to path.
func InitConfigToPath(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := GetDefaultConfig()
	content := fmt.Sprintf(sampleConfigTemplate,
		cfg.Server.ListenAddress,
		cfg.Server.TFTPRoot,
		cfg.Server.IdleTimeout,
		cfg.Server.RetryBudget,
		cfg.Server.PacketTimeout,
		cfg.Server.ConfigDebounce,
		cfg.Server.WarmPool.Workers,
		cfg.Server.WarmPool.QueueSize,
		cfg.Logging.Level,
		cfg.Logging.Format,
		cfg.Logging.Output,
		cfg.Admin.ListenAddress,
		cfg.Cache.Path,
		cfg.Cache.TTL,
		cfg.Profiling.Endpoint,
		cfg.Profiling.ServiceName,
	)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
