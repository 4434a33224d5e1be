package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the TFTP engine,
// session manager, and configuration watcher.
const (
	KeyOpcode    = "opcode"    // RRQ, DATA, ACK, ERROR, OACK
	KeyPath      = "path"      // resolved or requested path
	KeyFilename  = "filename"  // requested filename (as sent on the wire)
	KeySize      = "size"      // file size in bytes
	KeyBlockNum  = "block_num" // TFTP block number
	KeyBlksize   = "blksize"   // negotiated block size
	KeyTimeout   = "timeout"   // negotiated per-packet timeout
	KeyOffset    = "offset"    // read offset
	KeyBytesRead = "bytes_read"

	KeyClientIP   = "client_ip"
	KeyClientPort = "client_port"

	KeyURL        = "url"        // NBD export URL
	KeyMountpoint = "mountpoint" // guest mountpoint
	KeyPartition  = "partition"  // partition number
	KeySessionRef = "refcount"   // guest session reference count
	KeyState      = "state"      // session/transfer state

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"

	KeyConfigFile = "config_file"
)

// Opcode returns a slog.Attr for the TFTP opcode name
func Opcode(op string) slog.Attr {
	return slog.String(KeyOpcode, op)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a requested filename
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Size returns a slog.Attr for a file size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// BlockNum returns a slog.Attr for a TFTP block number
func BlockNum(n uint16) slog.Attr {
	return slog.Int(KeyBlockNum, int(n))
}

// Blksize returns a slog.Attr for the negotiated block size
func Blksize(n int) slog.Attr {
	return slog.Int(KeyBlksize, n)
}

// Timeout returns a slog.Attr for the negotiated per-packet timeout
func Timeout(seconds int) slog.Attr {
	return slog.Int(KeyTimeout, seconds)
}

// Offset returns a slog.Attr for a read offset
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// BytesRead returns a slog.Attr for the bytes read in an operation
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// ClientIP returns a slog.Attr for the client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for the client source port
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// URL returns a slog.Attr for an NBD export URL
func URL(url string) slog.Attr {
	return slog.String(KeyURL, url)
}

// Mountpoint returns a slog.Attr for a guest mountpoint
func Mountpoint(mp string) slog.Attr {
	return slog.String(KeyMountpoint, mp)
}

// Partition returns a slog.Attr for a partition number
func Partition(n int) slog.Attr {
	return slog.Int(KeyPartition, n)
}

// RefCount returns a slog.Attr for a session's reference count
func RefCount(n int32) slog.Attr {
	return slog.Int64(KeySessionRef, int64(n))
}

// State returns a slog.Attr for a session or transfer state name
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// DurationMsAttr returns a slog.Attr for an operation duration in milliseconds
func DurationMsAttr(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a TFTP error code
func ErrorCode(code uint16) slog.Attr {
	return slog.Int(KeyErrorCode, int(code))
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry budget
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// ConfigFile returns a slog.Attr for a configuration file path
func ConfigFile(path string) slog.Attr {
	return slog.String(KeyConfigFile, path)
}
