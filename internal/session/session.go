// Package session implements the GuestSession state machine and the
// SessionRegistry that owns one session per attached NBD URL, coalescing
// concurrent first-use attaches and evicting idle sessions.
package session

import (
	"sync"
	"time"

	"github.com/rtftp/rtftpd/internal/guestfs"
	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/rtftperr"
	"github.com/rtftp/rtftpd/pkg/metrics"
)

// State is a GuestSession's lifecycle stage.
type State int

const (
	StateConnecting State = iota
	StateReady
	StateFailed
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// GuestSession owns one attached, mounted libguestfs disk for one NBD URL.
// Every read and stat is serialized through mu, matching libguestfs's own
// single-threaded appliance protocol; operations on two different sessions
// never block each other.
type GuestSession struct {
	url    string
	mounts []nbdconfig.MountSpec

	mu    sync.Mutex
	disk  *guestfs.Disk
	state State

	refMu        sync.Mutex
	refCount     int32
	lastActivity time.Time

	cache   *statCache
	metrics metrics.SessionMetrics
}

func newSession(url string, mounts []nbdconfig.MountSpec) *GuestSession {
	return &GuestSession{
		url:          url,
		mounts:       mounts,
		state:        StateConnecting,
		lastActivity: time.Now(),
	}
}

// attach performs the Connecting → Ready transition: create the guest
// handle, attach the NBD URL as a read-only drive, launch, and mount every
// configured partition in order. Any failure transitions to Failed.
func (s *GuestSession) attach() error {
	disk, err := guestfs.AttachNBD(s.url)
	if err != nil {
		s.setState(StateFailed)
		return rtftperr.Wrap(rtftperr.ErrGuestAttachFailed, "attaching %s", s.url)
	}

	partitions, err := disk.ListPartitions()
	if err != nil {
		disk.Close()
		s.setState(StateFailed)
		return rtftperr.Wrap(rtftperr.ErrGuestAttachFailed, "listing partitions for %s", s.url)
	}

	for _, mount := range s.mounts {
		if mount.Partition < 1 || mount.Partition > len(partitions) {
			disk.Close()
			s.setState(StateFailed)
			return rtftperr.Wrap(rtftperr.ErrGuestAttachFailed,
				"no partition %d on %s (found %d)", mount.Partition, s.url, len(partitions))
		}
		if err := partitions[mount.Partition-1].MountRO(mount.Mountpoint); err != nil {
			disk.Close()
			s.setState(StateFailed)
			return rtftperr.Wrap(rtftperr.ErrGuestAttachFailed,
				"mounting partition %d at %s on %s", mount.Partition, mount.Mountpoint, s.url)
		}
	}

	s.mu.Lock()
	s.disk = disk
	s.mu.Unlock()

	s.setState(StateReady)
	logger.Info("guest session ready", logger.URL(s.url), logger.State(s.state.String()))
	return nil
}

func (s *GuestSession) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the session's current lifecycle stage.
func (s *GuestSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire increments the reference count for the duration of one
// file-read stream; the transfer engine holds one reference for an entire
// RRQ.
func (s *GuestSession) Acquire() {
	s.refMu.Lock()
	s.refCount++
	s.refMu.Unlock()
}

// Release decrements the reference count, marking the session eligible for
// idle eviction once it reaches zero.
func (s *GuestSession) Release() {
	s.refMu.Lock()
	s.refCount--
	s.refMu.Unlock()
}

// RefCount returns the current reference count.
func (s *GuestSession) RefCount() int32 {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.refCount
}

func (s *GuestSession) touch() {
	s.refMu.Lock()
	s.lastActivity = time.Now()
	s.refMu.Unlock()
}

// IdleSince returns how long it has been since the last successful
// operation against this session.
func (s *GuestSession) IdleSince() time.Duration {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return time.Since(s.lastActivity)
}

// Stat returns the size of absolutePath within the mounted guest
// filesystem, consulting the stat cache first when one is configured.
func (s *GuestSession) Stat(absolutePath string) (int64, error) {
	if s.cache != nil {
		if size, ok := s.cache.get(s.url, absolutePath); ok {
			if s.metrics != nil {
				s.metrics.RecordStatCacheResult("hit")
			}
			s.touch()
			return size, nil
		}
		if s.metrics != nil {
			s.metrics.RecordStatCacheResult("miss")
		}
	}

	s.mu.Lock()
	disk := s.disk
	s.mu.Unlock()
	if disk == nil {
		return 0, rtftperr.Wrap(rtftperr.ErrGuestIoFailed, "session %s not ready", s.url)
	}

	s.mu.Lock()
	size, err := disk.Stat(absolutePath)
	s.mu.Unlock()
	if err != nil {
		if gerr, ok := err.(*guestfs.Error); ok && gerr.Kind == guestfs.ErrKindFileNotFound {
			return 0, rtftperr.Wrap(rtftperr.ErrNotFound, "%s", absolutePath)
		}
		return 0, rtftperr.Wrap(rtftperr.ErrGuestIoFailed, "stat %s on %s", absolutePath, s.url)
	}

	s.touch()
	if s.cache != nil {
		s.cache.put(s.url, absolutePath, size)
	}
	return size, nil
}

// Read reads up to len(buf) bytes from absolutePath at offset, returning
// the number of bytes read and whether end-of-file was reached.
func (s *GuestSession) Read(absolutePath string, buf []byte, offset int64) (int, bool, error) {
	s.mu.Lock()
	disk := s.disk
	if disk == nil {
		s.mu.Unlock()
		return 0, false, rtftperr.Wrap(rtftperr.ErrGuestIoFailed, "session %s not ready", s.url)
	}
	n, err := disk.Pread(absolutePath, buf, offset)
	s.mu.Unlock()
	if err != nil {
		if gerr, ok := err.(*guestfs.Error); ok && gerr.Kind == guestfs.ErrKindFileNotFound {
			return 0, false, rtftperr.Wrap(rtftperr.ErrNotFound, "%s", absolutePath)
		}
		return 0, false, rtftperr.Wrap(rtftperr.ErrGuestIoFailed, "read %s on %s", absolutePath, s.url)
	}

	s.touch()
	eof := n < len(buf)
	return n, eof, nil
}

// close releases the guest handle. Safe to call once per session; the
// registry guarantees this happens exactly once during eviction.
func (s *GuestSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disk != nil {
		s.disk.Close()
		s.disk = nil
	}
	s.state = StateClosed
}
