package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadAppliesDefaultsOverPartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  tftp_root: `+dir+`
logging:
  level: "DEBUG"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "0.0.0.0:69", cfg.Server.ListenAddress)
	assert.Equal(t, dir, cfg.Server.TFTPRoot)
}

func TestLoadNoConfigFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nonexistent.yaml")

	cfg, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "0.0.0.0:69", cfg.Server.ListenAddress)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  level: INFO
  invalid yaml here [[[
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadParsesHumanReadableDurations(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  tftp_root: `+dir+`
  idle_timeout: 90s
  packet_timeout: 2s
  config_debounce: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 2*time.Second, cfg.Server.PacketTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.ConfigDebounce)
}

func TestLoadEnvironmentVariablesOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  tftp_root: `+dir+`
logging:
  level: "INFO"
`)

	t.Setenv("RTFTPD_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  listen_address: "0.0.0.0:69"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "/srv/tftp", cfg.Server.TFTPRoot)
	assert.NoError(t, Validate(cfg))
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "config.yaml", filepath.Base(path))
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()
	assert.Equal(t, "rtftpd", filepath.Base(dir))
}

func TestSaveConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.TFTPRoot = dir

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, loaded.Server.TFTPRoot)
	assert.Equal(t, cfg.Server.ListenAddress, loaded.Server.ListenAddress)
}
