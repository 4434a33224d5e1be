// Package rtftperr defines the error-kind taxonomy shared by the resolver,
// session manager, and transfer engine, so call sites can branch on kind
// with errors.Is instead of string matching.
package rtftperr

import (
	"errors"
	"fmt"

	"github.com/rtftp/rtftpd/internal/wire"
)

// Kind sentinels. Wrap these with fmt.Errorf("...: %w", ErrX) at the point
// a failure is detected; callers compare with errors.Is.
var (
	ErrProtocolFraming   = errors.New("protocol framing error")
	ErrPathUnsafe        = errors.New("unsafe path")
	ErrNotFound          = errors.New("not found")
	ErrOptionUnacceptable = errors.New("option unacceptable")
	ErrTransferTimeout   = errors.New("transfer timeout")
	ErrGuestAttachFailed = errors.New("guest attach failed")
	ErrGuestIoFailed     = errors.New("guest io failed")
	ErrConfigParseFailed = errors.New("config parse failed")
)

// WireCode maps an error-kind sentinel to the TFTP ERROR code the transfer
// engine should emit, per the error-handling taxonomy. A kind with no wire
// representation (TransferTimeout, ConfigParseFailed) returns ok=false: the
// caller must not send an ERROR packet for it.
func WireCode(err error) (code wire.ErrorCode, ok bool) {
	switch {
	case errors.Is(err, ErrProtocolFraming):
		return wire.ErrIllegalOp, true
	case errors.Is(err, ErrPathUnsafe):
		return wire.ErrAccessViolation, true
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrGuestAttachFailed):
		return wire.ErrNotFound, true
	case errors.Is(err, ErrOptionUnacceptable):
		return wire.ErrOptionRefused, true
	case errors.Is(err, ErrGuestIoFailed):
		return wire.ErrUndefined, true
	default:
		return 0, false
	}
}

// Wrap annotates err with a message while preserving errors.Is matching
// against the given kind sentinel.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}
