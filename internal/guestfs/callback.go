package guestfs

/*
#include <stdlib.h>
#include <guestfs.h>

extern void rtftpdGuestfsEvent(guestfs_h *g, void *opaque, uint64_t event,
	int event_handle, int flags, const char *buf, size_t buf_len,
	const uint64_t *array, size_t array_len);

static int rtftpd_set_event_callback(guestfs_h *g, uintptr_t opaque) {
	return guestfs_set_event_callback(g, rtftpdGuestfsEvent,
		GUESTFS_EVENT_APPLIANCE, 0, (void *)opaque);
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// registerEventCallback wires the appliance-log event into h.recordStderr,
// using a cgo.Handle so the C side only ever holds an opaque integer, never
// a raw Go pointer.
func (h *Handle) registerEventCallback() error {
	handle := cgo.NewHandle(h)
	h.cgoHandle = handle

	if rc := C.rtftpd_set_event_callback(h.ptr, C.uintptr_t(handle)); rc != 0 {
		handle.Delete()
		return h.lastError()
	}
	return nil
}

//export rtftpdGuestfsEvent
func rtftpdGuestfsEvent(g *C.guestfs_h, opaque unsafe.Pointer, event C.uint64_t,
	eventHandle C.int, flags C.int, buf *C.char, bufLen C.size_t,
	array *C.uint64_t, arrayLen C.size_t) {

	h, ok := cgo.Handle(uintptr(opaque)).Value().(*Handle)
	if !ok || buf == nil || bufLen == 0 {
		return
	}

	line := C.GoStringN(buf, C.int(bufLen))
	h.recordStderr(line)
}
