package transfer

import (
	"io"
	"os"

	"github.com/rtftp/rtftpd/internal/session"
	"github.com/rtftp/rtftpd/internal/vfs"
)

// OpenResolved returns the Reader a transfer should read blocks from for
// resolved, acquiring a guest session reference for the lifetime of the
// Reader when resolved.Kind is KindGuest.
func OpenResolved(resolved *vfs.ResolvedFile) (Reader, error) {
	switch resolved.Kind {
	case vfs.KindLocal:
		f, err := os.Open(resolved.LocalPath)
		if err != nil {
			return nil, err
		}
		return &localReader{f: f}, nil
	default:
		resolved.GuestSession.Acquire()
		return &guestReader{sess: resolved.GuestSession, path: resolved.GuestPath}, nil
	}
}

type localReader struct {
	f *os.File
}

func (r *localReader) ReadAt(buf []byte, offset int64) (int, error) {
	return r.f.ReadAt(buf, offset)
}

func (r *localReader) Close() error {
	return r.f.Close()
}

// guestReader adapts a GuestSession's Read (which reports EOF as a bool
// rather than io.EOF) to the io.ReaderAt-shaped Reader interface.
type guestReader struct {
	sess *session.GuestSession
	path string
}

func (r *guestReader) ReadAt(buf []byte, offset int64) (int, error) {
	n, eof, err := r.sess.Read(r.path, buf, offset)
	if err != nil {
		return n, err
	}
	if eof {
		return n, io.EOF
	}
	return n, nil
}

func (r *guestReader) Close() error {
	r.sess.Release()
	return nil
}
