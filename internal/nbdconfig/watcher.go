package nbdconfig

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rtftp/rtftpd/internal/logger"
)

// WarmFunc is invoked with a newly (re)loaded config when proactive
// warming should attach its session ahead of the first client request.
type WarmFunc func(cfg *NbdConfig)

// DrainFunc is invoked with the NBD URL of a config that was just removed,
// so its session (if any) can be marked for draining.
type DrainFunc func(url string)

// Watcher observes a Store's TFTP root for *.nbd create/modify/delete/move
// events and keeps the Store current. Rapid successive events on the same
// path are coalesced into a single reload after the debounce window
// elapses, so a multi-write editor save doesn't trigger redundant parses
// or redundant proactive attaches.
type Watcher struct {
	store    *Store
	debounce time.Duration
	warm     WarmFunc
	drain    DrainFunc

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a Watcher for store. warm and drain may be nil if
// proactive warming / drain notification is not needed by the caller.
func NewWatcher(store *Store, debounce time.Duration, warm WarmFunc, drain DrainFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(store.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return &Watcher{
		store:    store,
		debounce: debounce,
		warm:     warm,
		drain:    drain,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run processes filesystem events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".nbd") {
				continue
			}
			w.schedule(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", logger.Err(err))
		}
	}
}

// schedule debounces event.Name: any timer already pending for this path
// is reset rather than fired twice.
func (w *Watcher) schedule(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[event.Name]; ok {
		t.Stop()
	}

	w.pending[event.Name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()

		w.handle(event)
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		cfg, ok := w.store.remove(event.Name)
		if ok && w.drain != nil {
			w.drain(cfg.URL)
		}
		logger.Info("nbd config removed", logger.ConfigFile(event.Name))
		return
	}

	w.store.reload(event.Name)

	if cfg, ok := w.store.Get(clientAddrFromFilename(event.Name)); ok && w.warm != nil {
		w.warm(cfg)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.pending {
		t.Stop()
	}
}
