package transfer

import (
	"strconv"

	"github.com/rtftp/rtftpd/internal/wire"
)

const (
	defaultBlksize = 512
	minBlksize     = 8
	maxBlksize     = 65464

	defaultTimeoutSeconds = 3
	minTimeoutSeconds     = 1
	maxTimeoutSeconds     = 255
)

// negotiated carries the options the server actually accepted, which may
// differ from what the client requested: blksize and timeout are clamped
// into their legal ranges rather than rejected, per RFC 2348/2349.
type negotiated struct {
	blksize int
	timeout int
	tsize   *int64 // non-nil iff the client requested tsize (value 0)
}

// negotiate inspects the RRQ's option list and returns the accepted values
// plus the OACK option list to send (empty if none of the requested
// options were recognized, meaning the transfer proceeds straight to DATA
// block 1 without an OACK round-trip). n.timeout is only meaningful when
// the returned OACK list includes a "timeout" entry — the caller must fall
// back to its own configured default otherwise, since nothing was
// negotiated (or advertised) to override it.
func negotiate(opts []wire.Option, resolvedSize int64) (negotiated, []wire.Option) {
	n := negotiated{blksize: defaultBlksize, timeout: defaultTimeoutSeconds}
	var oack []wire.Option

	if v, ok := wire.OptionInt(opts, "blksize"); ok {
		n.blksize = clamp(v, minBlksize, maxBlksize)
		oack = append(oack, wire.Option{Name: "blksize", Value: strconv.Itoa(n.blksize)})
	}

	if v, ok := wire.OptionInt(opts, "timeout"); ok {
		n.timeout = clamp(v, minTimeoutSeconds, maxTimeoutSeconds)
		oack = append(oack, wire.Option{Name: "timeout", Value: strconv.Itoa(n.timeout)})
	}

	if hasOption(opts, "tsize") {
		size := resolvedSize
		n.tsize = &size
		oack = append(oack, wire.Option{Name: "tsize", Value: strconv.FormatInt(size, 10)})
	}

	return n, oack
}

func hasOption(opts []wire.Option, name string) bool {
	for _, o := range opts {
		if o.Name == name {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
