// Package vfs implements the three-layer path resolver: a per-client local
// directory, a shared local default directory, and (as a last resort) the
// client's attached NBD guest filesystem.
package vfs

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/rtftperr"
	"github.com/rtftp/rtftpd/internal/session"
)

// Kind distinguishes where a ResolvedFile's bytes come from.
type Kind int

const (
	KindLocal Kind = iota
	KindGuest
)

// ResolvedFile is the result of resolving a client's requested path: either
// a local filesystem path ready to os.Open, or a guest session plus the
// guest-absolute path to read from it.
type ResolvedFile struct {
	Kind Kind
	Size int64

	// Valid when Kind == KindLocal.
	LocalPath string

	// Valid when Kind == KindGuest.
	GuestSession *session.GuestSession
	GuestPath    string
}

// Resolver implements the local-client → local-default → guest precedence
// described for RRQ path resolution.
type Resolver struct {
	tftpRoot string
	configs  *nbdconfig.Store
	sessions *session.Registry
}

// New creates a Resolver rooted at tftpRoot, consulting configs for
// per-client NBD configuration and sessions for guest-backed reads.
func New(tftpRoot string, configs *nbdconfig.Store, sessions *session.Registry) *Resolver {
	return &Resolver{tftpRoot: tftpRoot, configs: configs, sessions: sessions}
}

// Resolve finds the file requested path should serve for clientAddr,
// trying the per-client local directory, the shared default local
// directory, and finally the client's guest filesystem, in that order.
// The first candidate that exists and is a regular file wins.
func (r *Resolver) Resolve(ctx context.Context, clientAddr, relPath string) (*ResolvedFile, error) {
	if resolved, ok := r.tryLocal(filepath.Join(r.tftpRoot, clientAddr), relPath); ok {
		return resolved, nil
	}

	if resolved, ok := r.tryLocal(filepath.Join(r.tftpRoot, "default"), relPath); ok {
		return resolved, nil
	}

	cfg, ok := r.configs.Get(clientAddr)
	if !ok {
		return nil, rtftperr.Wrap(rtftperr.ErrNotFound, "%s", relPath)
	}

	sess, err := r.sessions.GetOrAttach(ctx, cfg)
	if err != nil {
		return nil, err
	}

	guestPath := path.Join(cfg.TFTPRoot, relPath)
	size, err := sess.Stat(guestPath)
	if err != nil {
		return nil, err
	}

	return &ResolvedFile{
		Kind:         KindGuest,
		Size:         size,
		GuestSession: sess,
		GuestPath:    guestPath,
	}, nil
}

// tryLocal stats dir/relPath and returns a ResolvedFile if it exists and is
// a regular file. Directories and anything stat fails on are treated as a
// miss, falling through to the next layer.
//
// Symlinks are followed, but a path whose resolved target lies outside
// tftpRoot is treated as a miss.
func (r *Resolver) tryLocal(dir, relPath string) (*ResolvedFile, bool) {
	full := filepath.Join(dir, filepath.FromSlash(relPath))

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}

	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		return nil, false
	}
	root, err := filepath.EvalSymlinks(r.tftpRoot)
	if err != nil {
		return nil, false
	}
	if rel, err := filepath.Rel(root, real); err != nil || !filepath.IsLocal(rel) {
		return nil, false
	}

	return &ResolvedFile{
		Kind:      KindLocal,
		Size:      info.Size(),
		LocalPath: full,
	}, true
}
