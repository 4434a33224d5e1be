package session

import (
	"context"
	"sync"
	"time"

	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/pkg/metrics"
)

// entry is either a Connecting placeholder other callers coalesce on, or a
// fully attached session. attachErr and attachDone are only meaningful
// while session.State() == StateConnecting.
type entry struct {
	session    *GuestSession
	attachDone chan struct{}
	attachErr  error
}

// Registry owns every live GuestSession, keyed by NBD URL. The lock order
// is always registry mutex, then a session's own internal mutex — never
// the reverse — so an attach in progress under the registry lock can still
// make a blocking libguestfs call without holding the registry lock itself.
type Registry struct {
	cache   *statCache
	metrics metrics.SessionMetrics

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry. cache may be nil to disable the
// stat cache. m may be nil to disable metrics collection.
func NewRegistry(cache *statCache, m metrics.SessionMetrics) *Registry {
	return &Registry{
		cache:   cache,
		metrics: m,
		entries: make(map[string]*entry),
	}
}

// setActiveSessions reports the current entry count to metrics. Called
// with r.mu already released, since it takes r.mu's read lock itself to
// count the entries.
func (r *Registry) setActiveSessions() {
	if r.metrics == nil {
		return
	}
	r.mu.RLock()
	count := len(r.entries)
	r.mu.RUnlock()
	r.metrics.SetActiveSessions(count)
}

// GetOrAttach returns the Ready session for cfg.URL, attaching it if no
// session exists yet. Concurrent callers for the same URL coalesce onto a
// single in-flight attach: the first caller performs it, the rest wait on
// attachDone.
func (r *Registry) GetOrAttach(ctx context.Context, cfg *nbdconfig.NbdConfig) (*GuestSession, error) {
	r.mu.Lock()
	if e, ok := r.entries[cfg.URL]; ok {
		r.mu.Unlock()
		return r.awaitEntry(ctx, e)
	}

	sess := newSession(cfg.URL, cfg.Mounts)
	sess.cache = r.cache
	sess.metrics = r.metrics
	e := &entry{session: sess, attachDone: make(chan struct{})}
	r.entries[cfg.URL] = e
	r.mu.Unlock()

	start := time.Now()
	err := sess.attach()
	if r.metrics != nil {
		r.metrics.RecordAttach(err == nil, time.Since(start))
	}
	if err != nil {
		r.mu.Lock()
		delete(r.entries, cfg.URL)
		r.mu.Unlock()
	}
	e.attachErr = err
	close(e.attachDone)
	r.setActiveSessions()

	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (r *Registry) awaitEntry(ctx context.Context, e *entry) (*GuestSession, error) {
	select {
	case <-e.attachDone:
		if e.attachErr != nil {
			return nil, e.attachErr
		}
		return e.session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the session for url without attaching, for callers (the
// watcher's drain path, the admin surface) that only care whether one
// already exists.
func (r *Registry) Get(url string) (*GuestSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[url]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// MarkDraining transitions the session for url (if any and if Ready) to
// Draining, so the idle sweeper (or an immediate close once refcount
// reaches zero) will retire it instead of serving further reads against a
// config that no longer exists.
func (r *Registry) MarkDraining(url string) {
	r.mu.RLock()
	e, ok := r.entries[url]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.session.mu.Lock()
	if e.session.state == StateReady {
		e.session.state = StateDraining
	}
	e.session.mu.Unlock()
}

// Snapshot returns a point-in-time, read-only projection of every session
// for admin/CLI consumption.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.entries))
	for url, e := range r.entries {
		out = append(out, Snapshot{
			URL:          url,
			State:        e.session.State().String(),
			RefCount:     e.session.RefCount(),
			LastActivity: time.Now().Add(-e.session.IdleSince()),
			Mounts:       e.session.mounts,
		})
	}
	return out
}

// Snapshot is a read-only projection of a GuestSession, safe to serialize
// over the admin HTTP surface without aliasing live session state.
type Snapshot struct {
	URL          string                `json:"url"`
	State        string                `json:"state"`
	RefCount     int32                 `json:"ref_count"`
	LastActivity time.Time             `json:"last_activity"`
	Mounts       []nbdconfig.MountSpec `json:"mounts"`
}

// Sweep evicts Ready sessions idle for at least idleTimeout with a zero
// reference count, transitioning them Ready → Draining → Closed and
// releasing their guest handles. Called periodically by the caller's own
// ticker (resolution ≤ 1s per the idle-eviction invariant).
func (r *Registry) Sweep(idleTimeout time.Duration) {
	r.mu.Lock()
	type closing struct {
		url    string
		reason string
	}
	var toClose []closing
	for url, e := range r.entries {
		state := e.session.State()
		if state == StateDraining && e.session.RefCount() == 0 {
			toClose = append(toClose, closing{url, "drained"})
			continue
		}
		if state != StateReady {
			continue
		}
		if e.session.RefCount() != 0 {
			continue
		}
		if e.session.IdleSince() < idleTimeout {
			continue
		}
		e.session.setState(StateDraining)
		toClose = append(toClose, closing{url, "idle_timeout"})
	}
	r.mu.Unlock()

	for _, c := range toClose {
		r.closeAndRemove(c.url, c.reason)
	}
}

// closeAndRemove closes the session for url and removes it from the
// registry, recording reason ("idle_timeout", "drained", or "shutdown")
// against the eviction counter. Used by the idle sweeper, by Drain for
// configs that disappeared, and by CloseAll during shutdown.
func (r *Registry) closeAndRemove(url, reason string) {
	r.mu.Lock()
	e, ok := r.entries[url]
	if ok {
		delete(r.entries, url)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	e.session.close()
	if r.metrics != nil {
		r.metrics.RecordEviction(reason)
	}
	r.setActiveSessions()
	logger.Info("guest session closed", logger.URL(url))
}

// Drain closes the session for url immediately if its reference count is
// already zero; otherwise it is left Draining and the idle sweeper (which
// also closes Draining sessions once their refcount reaches zero) retires
// it once in-flight transfers complete.
func (r *Registry) Drain(url string) {
	r.mu.RLock()
	e, ok := r.entries[url]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.session.mu.Lock()
	e.session.state = StateDraining
	e.session.mu.Unlock()

	if e.session.RefCount() == 0 {
		r.closeAndRemove(url, "drained")
	}
}

// RunSweeper calls Sweep on a fixed interval until ctx is canceled. The
// idle-eviction invariant requires sub-second resolution, so callers
// should pass an interval of at most one second.
func (r *Registry) RunSweeper(ctx context.Context, interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idleTimeout)
		}
	}
}

// CloseAll closes every session, for use during graceful shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	urls := make([]string, 0, len(r.entries))
	for url := range r.entries {
		urls = append(urls, url)
	}
	r.mu.Unlock()

	for _, url := range urls {
		r.closeAndRemove(url, "shutdown")
	}
}
