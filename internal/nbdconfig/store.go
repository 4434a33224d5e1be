package nbdconfig

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rtftp/rtftpd/internal/logger"
)

// Store is the process-wide ConfigStore: a map from client IP to its
// parsed NbdConfig. Keys exist iff a <ClientAddr>.nbd file exists in the
// TFTP root and was successfully parsed at least once. Parse failures
// leave the prior entry, if any, untouched.
type Store struct {
	root string

	mu      sync.RWMutex
	configs map[string]*NbdConfig
}

// NewStore creates a Store rooted at tftpRoot. Call Scan once at startup
// to populate it before serving traffic.
func NewStore(tftpRoot string) *Store {
	return &Store{
		root:    tftpRoot,
		configs: make(map[string]*NbdConfig),
	}
}

// Get returns the config for clientAddr, if any.
func (s *Store) Get(clientAddr string) (*NbdConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[clientAddr]
	return cfg, ok
}

// Snapshot returns a copy of the full client-IP → config map.
func (s *Store) Snapshot() map[string]*NbdConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*NbdConfig, len(s.configs))
	for k, v := range s.configs {
		out[k] = v
	}
	return out
}

// Scan walks the TFTP root for *.nbd files and loads each one. Parse
// failures are logged and skipped; they do not abort the scan.
func (s *Store) Scan() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".nbd") {
			continue
		}
		s.reload(filepath.Join(s.root, entry.Name()))
	}

	return nil
}

// clientAddrFromFilename extracts "<ClientAddr>" from "<ClientAddr>.nbd".
func clientAddrFromFilename(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".nbd")
}

// reload parses path and, on success, atomically replaces the entry for
// its client address. Parse failures are logged and the prior entry (if
// any) is left untouched.
func (s *Store) reload(path string) {
	clientAddr := clientAddrFromFilename(path)

	cfg, err := ParseFile(path)
	if err != nil {
		logger.Warn("failed to parse nbd config, keeping prior state",
			logger.ConfigFile(path), logger.Err(err))
		return
	}

	s.mu.Lock()
	s.configs[clientAddr] = cfg
	s.mu.Unlock()

	logger.Info("nbd config loaded", logger.ConfigFile(path), logger.URL(cfg.URL))
}

// remove deletes the entry for the client address derived from path. It
// returns the removed config (if any) so the caller can drain its session.
func (s *Store) remove(path string) (*NbdConfig, bool) {
	clientAddr := clientAddrFromFilename(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[clientAddr]
	if ok {
		delete(s.configs, clientAddr)
	}
	return cfg, ok
}
