// Package guestfs binds directly to libguestfs.so to attach an NBD export,
// enumerate its partitions, mount one read-only, and read files out of the
// resulting guest filesystem. There is no Go module that wraps libguestfs's
// filesystem-mount surface (libnbd's Go bindings only reach the block-level
// protocol), so this package talks to the C library the same way the
// reference implementation's own extern "C" declarations do.
package guestfs
