// Package nbdconfig implements the ConfigStore and its filesystem watcher:
// parsing per-client *.nbd JSON files and keeping an in-memory map from
// client IP to NbdConfig current as files appear, change, and disappear.
package nbdconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// MountSpec describes one partition mount, applied in declaration order
// onto the filesystem assembled by prior mounts.
type MountSpec struct {
	Partition  int    `json:"partition" validate:"required,gt=0"`
	Mountpoint string `json:"mountpoint" validate:"required"`
}

// NbdConfig is the parsed contents of one <ClientAddr>.nbd file. It is
// immutable once loaded; a reload produces a new value that atomically
// replaces the old one in the Store.
type NbdConfig struct {
	URL      string      `json:"url" validate:"required"`
	Mounts   []MountSpec `json:"mounts" validate:"required,min=1,dive"`
	TFTPRoot string      `json:"tftp_root"`
}

var validate = validator.New()

// Parse decodes and validates raw *.nbd file contents.
//
// An empty mounts list is rejected here, at parse time, rather than
// tolerated as a config with no effect: a disk with no declared mounts can
// never produce a readable file, so failing fast with a logged error beats
// a config that silently 404s every request against it forever.
func Parse(data []byte) (*NbdConfig, error) {
	var cfg NbdConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing nbd config: %w", err)
	}

	if cfg.TFTPRoot == "" {
		cfg.TFTPRoot = "/"
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating nbd config: %w", err)
	}

	return &cfg, nil
}

// ParseFile reads and parses a *.nbd file from disk.
func ParseFile(path string) (*NbdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading nbd config %s: %w", path, err)
	}
	return Parse(data)
}
