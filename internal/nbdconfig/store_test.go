package nbdconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const validBody = `{
	"url": "nbd://storage.local:10809/export",
	"mounts": [{"partition": 1, "mountpoint": "/"}]
}`

func TestStoreScanLoadsValidConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "192.168.1.10.nbd", validBody)

	s := NewStore(dir)
	require.NoError(t, s.Scan())

	cfg, ok := s.Get("192.168.1.10")
	require.True(t, ok)
	assert.Equal(t, "nbd://storage.local:10809/export", cfg.URL)
}

func TestStoreScanIgnoresNonNbdFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "192.168.1.10.nbd", validBody)
	writeConfigFile(t, dir, "readme.txt", "not a config")

	s := NewStore(dir)
	require.NoError(t, s.Scan())

	assert.Len(t, s.Snapshot(), 1)
}

func TestStoreScanSkipsInvalidConfigButKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "bad.nbd", `{"mounts": []}`)
	writeConfigFile(t, dir, "192.168.1.10.nbd", validBody)

	s := NewStore(dir)
	require.NoError(t, s.Scan())

	_, ok := s.Get("bad")
	assert.False(t, ok)

	_, ok = s.Get("192.168.1.10")
	assert.True(t, ok)
}

func TestStoreReloadKeepsPriorStateOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "192.168.1.10.nbd", validBody)

	s := NewStore(dir)
	require.NoError(t, s.Scan())

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))
	s.reload(path)

	cfg, ok := s.Get("192.168.1.10")
	require.True(t, ok)
	assert.Equal(t, "nbd://storage.local:10809/export", cfg.URL)
}

func TestStoreRemove(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "192.168.1.10.nbd", validBody)

	s := NewStore(dir)
	require.NoError(t, s.Scan())

	cfg, ok := s.remove(path)
	require.True(t, ok)
	assert.Equal(t, "nbd://storage.local:10809/export", cfg.URL)

	_, ok = s.Get("192.168.1.10")
	assert.False(t, ok)
}

func TestClientAddrFromFilename(t *testing.T) {
	assert.Equal(t, "192.168.1.10", clientAddrFromFilename("/srv/tftp/192.168.1.10.nbd"))
}
