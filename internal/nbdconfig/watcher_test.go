package nbdconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherLoadsConfigOnCreate(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	warmed := make(chan *NbdConfig, 1)
	w, err := NewWatcher(s, 20*time.Millisecond, func(cfg *NbdConfig) {
		warmed <- cfg
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	path := filepath.Join(dir, "192.168.1.10.nbd")
	require.NoError(t, os.WriteFile(path, []byte(validBody), 0644))

	select {
	case cfg := <-warmed:
		assert.Equal(t, "nbd://storage.local:10809/export", cfg.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config load")
	}

	cfg, ok := s.Get("192.168.1.10")
	require.True(t, ok)
	assert.Equal(t, "nbd://storage.local:10809/export", cfg.URL)
}

func TestWatcherDrainsOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "192.168.1.10.nbd", validBody)

	s := NewStore(dir)
	require.NoError(t, s.Scan())

	drained := make(chan string, 1)
	w, err := NewWatcher(s, 20*time.Millisecond, nil, func(url string) {
		drained <- url
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.Remove(path))

	select {
	case url := <-drained:
		assert.Equal(t, "nbd://storage.local:10809/export", url)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drain notification")
	}

	_, ok := s.Get("192.168.1.10")
	assert.False(t, ok)
}

func TestWatcherIgnoresNonNbdFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	warmed := make(chan *NbdConfig, 1)
	w, err := NewWatcher(s, 20*time.Millisecond, func(cfg *NbdConfig) {
		warmed <- cfg
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	select {
	case <-warmed:
		t.Fatal("watcher should not react to non-.nbd files")
	case <-time.After(200 * time.Millisecond):
	}
}
