// Package config loads and validates the rtftpd process configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level rtftpd configuration.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (RTFTPD_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Environment variables override only keys present in the configuration
// file; when no file is found, Load returns the defaults unchanged.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Admin     AdminConfig     `mapstructure:"admin" yaml:"admin"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ServerConfig holds the TFTP engine's own settings.
type ServerConfig struct {
	// ListenAddress is the UDP address the TFTP listener binds, e.g. "0.0.0.0:69".
	ListenAddress string `mapstructure:"listen_address" validate:"required" yaml:"listen_address"`

	// TFTPRoot is the local directory housing per-client directories, *.nbd
	// config files, and the default/ fallback directory.
	TFTPRoot string `mapstructure:"tftp_root" validate:"required" yaml:"tftp_root"`

	// IdleTimeout is how long a guest session may sit with zero reference
	// count and zero activity before the sweeper closes it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"required,gt=0" yaml:"idle_timeout"`

	// ProactiveWarming attaches an NBD session as soon as its config file
	// appears, rather than waiting for the first client request.
	ProactiveWarming bool `mapstructure:"proactive_warming" yaml:"proactive_warming"`

	// RetryBudget is the number of DATA/OACK retransmissions attempted
	// before a transfer is abandoned.
	RetryBudget int `mapstructure:"retry_budget" validate:"required,gt=0" yaml:"retry_budget"`

	// PacketTimeout is the default per-packet ACK wait, used when the
	// client does not negotiate a `timeout` option. Clamped to [1s, 255s]
	// once negotiated per-transfer.
	PacketTimeout time.Duration `mapstructure:"packet_timeout" validate:"required,gt=0" yaml:"packet_timeout"`

	// ConfigDebounce coalesces rapid successive filesystem notifications on
	// the same *.nbd file into a single reload.
	ConfigDebounce time.Duration `mapstructure:"config_debounce" validate:"required,gt=0" yaml:"config_debounce"`

	// WarmPool sizes the bounded worker pool used for proactive attaches.
	WarmPool WarmPoolConfig `mapstructure:"warm_pool" yaml:"warm_pool"`
}

// WarmPoolConfig sizes the proactive-warming worker pool.
type WarmPoolConfig struct {
	Workers   int `mapstructure:"workers" validate:"omitempty,gt=0" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,gt=0" yaml:"queue_size"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus exposition endpoint served by the
// admin HTTP surface.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AdminConfig configures the loopback-bindable admin HTTP surface
// (/healthz, /metrics, /sessions).
type AdminConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" validate:"omitempty" yaml:"listen_address"`
}

// CacheConfig configures the embedded stat-result cache fronting guest
// session reads.
type CacheConfig struct {
	// Path is the directory for the embedded badger cache database.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// TTL is how long a cached stat result is trusted before a fresh
	// libguestfs call is made.
	TTL time.Duration `mapstructure:"ttl" validate:"required,gt=0" yaml:"ttl"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, producing an actionable error pointing at
// `rtftpd init` when no configuration file exists.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  rtftpd init\n\n"+
				"Or specify a custom config file:\n"+
				"  rtftpd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  rtftpd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks struct-tag constraints on the loaded configuration.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// SaveConfig writes cfg to path in YAML form with restricted permissions.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("RTFTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks needed to parse
// human-readable durations from config/environment values.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "250ms", "3s", "1h" to
// time.Duration, mirroring the human-readable duration fields throughout
// ServerConfig and CacheConfig.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, preferring
// XDG_CONFIG_HOME, falling back to ~/.config, and finally "." if the home
// directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rtftpd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "rtftpd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for `rtftpd init`).
func GetConfigDir() string {
	return getConfigDir()
}
