package guestfs

/*
#cgo LDFLAGS: -lguestfs
#include <stdlib.h>
#include <guestfs.h>

// cgo cannot call the variadic guestfs_add_drive_opts directly, so it gets
// a thin non-variadic shim here; the other guestfs calls are made directly.

static int rtftpd_add_drive_opts_readonly(guestfs_h *g, const char *filename) {
	return guestfs_add_drive_opts(g, filename, GUESTFS_ADD_DRIVE_OPTS_READONLY, 1, -1);
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"
)

// Handle wraps one guestfs_h appliance handle. A Handle is not safe for
// concurrent use: the session layer serializes all calls against a given
// Handle with its own mutex, matching libguestfs's own single-threaded
// appliance protocol.
type Handle struct {
	ptr       *C.guestfs_h
	cgoHandle cgo.Handle

	mu     sync.Mutex
	stderr []string
}

// NewHandle creates a fresh libguestfs appliance handle with signal
// propagation disabled and its appliance-log event callback wired up,
// matching the reference attach sequence.
func NewHandle() (*Handle, error) {
	ptr := C.guestfs_create()
	if ptr == nil {
		return nil, &Error{Kind: ErrKindGeneric, Message: "guestfs_create returned NULL"}
	}

	h := &Handle{ptr: ptr}

	if err := h.registerEventCallback(); err != nil {
		h.Close()
		return nil, err
	}

	if rc := C.guestfs_set_pgroup(ptr, C.int(1)); rc != 0 {
		err := h.lastError()
		h.Close()
		return nil, err
	}

	return h, nil
}

// AddReadOnlyDrive attaches path as a read-only drive, used both for the
// /dev/null stub drive libguestfs requires before launch and for any
// file-backed disk a future Non-NBD backend might add.
func (h *Handle) AddReadOnlyDrive(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	if rc := C.rtftpd_add_drive_opts_readonly(h.ptr, cPath); rc != 0 {
		return classifyDriveError(h.lastErrorString())
	}
	return nil
}

// AddQemuOption passes a raw qemu command-line option through to the
// appliance, used to attach the NBD export as a virtual SCSI drive before
// launch.
func (h *Handle) AddQemuOption(key, value string) error {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))

	if rc := C.guestfs_config(h.ptr, cKey, cValue); rc != 0 {
		return h.lastError()
	}
	return nil
}

// SetAppend passes an extra kernel command-line append string to the
// appliance; used to silence systemd's colored console output so appliance
// stderr stays parseable.
func (h *Handle) SetAppend(value string) error {
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))

	if rc := C.guestfs_set_append(h.ptr, cValue); rc != 0 {
		return h.lastError()
	}
	return nil
}

// Launch boots the appliance. On failure, DrainApplianceStderr returns
// diagnostic detail (connection-refused, export-not-found) that
// guestfs_last_error alone does not surface.
func (h *Handle) Launch() error {
	if rc := C.guestfs_launch(h.ptr); rc != 0 {
		return h.lastError()
	}
	return nil
}

// ListPartitions returns the appliance's /dev/sdaN-style partition device
// names for the attached drive, in order.
func (h *Handle) ListPartitions() ([]string, error) {
	result := C.guestfs_list_partitions(h.ptr)
	if result == nil {
		return nil, h.lastError()
	}
	defer C.free(unsafe.Pointer(result))

	var partitions []string
	entrySize := unsafe.Sizeof(result)
	for i := uintptr(0); ; i++ {
		entryPtr := *(**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(result)) + i*entrySize))
		if entryPtr == nil {
			break
		}
		partitions = append(partitions, C.GoString(entryPtr))
		C.free(unsafe.Pointer(entryPtr))
	}
	return partitions, nil
}

// MountRO mounts device read-only at mountpoint within the guest filesystem
// namespace.
func (h *Handle) MountRO(device, mountpoint string) error {
	cDevice := C.CString(device)
	defer C.free(unsafe.Pointer(cDevice))
	cMountpoint := C.CString(mountpoint)
	defer C.free(unsafe.Pointer(cMountpoint))

	if rc := C.guestfs_mount_ro(h.ptr, cDevice, cMountpoint); rc != 0 {
		return h.lastError()
	}
	return nil
}

// Stat returns the size in bytes of path within the mounted guest
// filesystem.
func (h *Handle) Stat(path string) (int64, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	result := C.guestfs_stat(h.ptr, cPath)
	if result == nil {
		return 0, classifyPathError(h.lastErrorString())
	}
	defer C.guestfs_free_stat(result)

	return int64(result.st_size), nil
}

// Pread reads up to len(buf) bytes from path at offset, returning the
// number of bytes actually read. A short read that is not also an error
// means offset+len(buf) reached end of file.
func (h *Handle) Pread(path string, buf []byte, offset int64) (int, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var sizeR C.size_t
	result := C.guestfs_pread(h.ptr, cPath, C.int(len(buf)), C.int64_t(offset), &sizeR)
	if result == nil {
		return 0, classifyPathError(h.lastErrorString())
	}
	defer C.free(unsafe.Pointer(result))

	n := int(sizeR)
	if n > len(buf) {
		n = len(buf)
	}
	if n > 0 {
		copy(buf[:n], unsafe.Slice((*byte)(unsafe.Pointer(result)), n))
	}
	return n, nil
}

// Close releases the appliance handle. Safe to call once; the session
// layer guarantees a Handle is closed exactly once as it is evicted.
func (h *Handle) Close() {
	if h.ptr != nil {
		C.guestfs_close(h.ptr)
		h.ptr = nil
	}
	if h.cgoHandle != 0 {
		h.cgoHandle.Delete()
		h.cgoHandle = 0
	}
}

func (h *Handle) lastErrorString() string {
	msg := C.guestfs_last_error(h.ptr)
	if msg == nil {
		return ""
	}
	return C.GoString(msg)
}

func (h *Handle) lastError() error {
	msg := h.lastErrorString()
	if msg == "" {
		return &Error{Kind: ErrKindUnknown, Message: "unknown guestfs error"}
	}
	return &Error{Kind: ErrKindGeneric, Message: msg}
}

// recordStderr appends a line captured from the appliance event callback,
// so Launch failures can be diagnosed beyond guestfs_last_error's single
// summary line.
func (h *Handle) recordStderr(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stderr = append(h.stderr, line)
}

// DrainApplianceStderr returns and clears any appliance stderr lines
// captured since the last call.
func (h *Handle) DrainApplianceStderr() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := h.stderr
	h.stderr = nil
	return lines
}

func (h *Handle) String() string {
	return fmt.Sprintf("<guestfs handle %p>", h.ptr)
}
