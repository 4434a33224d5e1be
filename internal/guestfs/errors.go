package guestfs

import (
	"fmt"
	"strings"
)

// Error classifies a libguestfs failure so callers can branch without
// string-matching the appliance's raw error text more than once.
type Error struct {
	Kind    ErrorKind
	Message string
}

// ErrorKind enumerates the libguestfs failure classes the session and
// resolver layers need to distinguish.
type ErrorKind int

const (
	// ErrKindGeneric is an unclassified guestfs/appliance failure.
	ErrKindGeneric ErrorKind = iota
	// ErrKindDiskNotFound means the backing disk path does not exist.
	ErrKindDiskNotFound
	// ErrKindConnectionRefused means the NBD server refused the TCP connection.
	ErrKindConnectionRefused
	// ErrKindExportNotFound means the NBD server doesn't export the requested name.
	ErrKindExportNotFound
	// ErrKindFileNotFound means the requested guest path doesn't exist.
	ErrKindFileNotFound
	// ErrKindUnknown means libguestfs reported no error text at all.
	ErrKindUnknown
)

func (e *Error) Error() string {
	return fmt.Sprintf("guestfs: %s", e.Message)
}

// classifyAppliance inspects qemu/libguestfs appliance stderr lines to
// recognize connection-refused and export-not-found failures, which
// libguestfs otherwise reports only as an opaque launch failure.
func classifyAppliance(lines []string) *Error {
	var collected []string
	for _, line := range lines {
		switch {
		case strings.Contains(line, "Failed to connect to") && strings.Contains(line, "Connection refused"):
			return &Error{Kind: ErrKindConnectionRefused, Message: line}
		case strings.Contains(line, "server reported: export ") && strings.Contains(line, "not present"):
			return &Error{Kind: ErrKindExportNotFound, Message: line}
		default:
			collected = append(collected, line)
		}
	}
	return &Error{Kind: ErrKindGeneric, Message: strings.Join(collected, "\n")}
}

// classifyDriveError inspects a guestfs_last_error() string returned from
// add_drive_opts, where "no such file" means the backing disk is missing.
func classifyDriveError(message string) *Error {
	if message == "" {
		return &Error{Kind: ErrKindUnknown, Message: "unknown guestfs error"}
	}
	if strings.Contains(message, "No such file or directory") {
		return &Error{Kind: ErrKindDiskNotFound, Message: message}
	}
	return &Error{Kind: ErrKindGeneric, Message: message}
}

// classifyPathError inspects a guestfs_last_error() string returned from a
// guest-path operation (stat, pread), where "no such file" means the
// requested path doesn't exist in the mounted filesystem.
func classifyPathError(message string) *Error {
	if message == "" {
		return &Error{Kind: ErrKindUnknown, Message: "unknown guestfs error"}
	}
	if strings.Contains(message, "No such file or directory") {
		return &Error{Kind: ErrKindFileNotFound, Message: message}
	}
	return &Error{Kind: ErrKindGeneric, Message: message}
}
