// Package pathsafe normalizes and validates TFTP-supplied request paths
// before they ever reach a resolver layer.
package pathsafe

import (
	"fmt"
	"path"
	"strings"
)

// ErrUnsafe is returned for any request path that is empty, contains a
// NUL byte, contains a ".." component after normalization, or whose
// normalized form would escape the effective root.
var ErrUnsafe = fmt.Errorf("unsafe request path")

// Sanitize validates and normalizes a client-supplied TFTP path. It rejects
// traversal and embedded NULs, and returns a relative, forward-slash path;
// absolute paths are accepted with all leading slashes stripped.
//
// Backslashes are treated as literal characters, not separators — TFTP's
// wire format is ASCII with forward slashes, and a Windows-style request
// path is not a traversal attempt the sanitizer needs to unescape, only one
// it must refuse to resolve.
func Sanitize(requested string) (string, error) {
	if requested == "" {
		return "", ErrUnsafe
	}
	if strings.ContainsRune(requested, 0) {
		return "", ErrUnsafe
	}

	// Clean as a relative path, not a rooted one: prepending "/" first would
	// let Clean silently absorb a leading ".." against the synthetic root
	// (path.Clean("/../../etc/shadow") == "/etc/shadow"), hiding a traversal
	// instead of rejecting it. Cleaned as relative, an unresolvable leading
	// ".." survives in the output where the checks below can catch it.
	clean := path.Clean(strings.TrimLeft(requested, "/"))

	if clean == "" || clean == "." {
		return "", ErrUnsafe
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrUnsafe
	}

	return clean, nil
}
