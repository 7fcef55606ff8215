// Package platform wraps the handful of OS-specific calls the snapshot
// engine needs: stat field extraction, the process umask, and creation of
// fifos and device nodes.
package platform

import (
	"golang.org/x/sys/unix"
)

// DefaultBlockSize is used when the filesystem reports no preferred I/O size.
const DefaultBlockSize = 64 * 1024

// Umask sets the process file mode creation mask and returns the previous one.
func Umask(mask int) int {
	return unix.Umask(mask)
}

// Mkfifo creates a named pipe at path with the permission bits of mode.
func Mkfifo(path string, mode uint32) error {
	return unix.Mkfifo(path, mode&0o7777)
}

// Mknod creates a filesystem node. mode must carry the file type bits
// (S_IFCHR, S_IFBLK, S_IFSOCK ...); major and minor are ignored for
// node types that have no device number.
func Mknod(path string, mode uint32, major, minor uint32) error {
	dev := unix.Mkdev(major, minor)
	return unix.Mknod(path, mode, int(dev)) //nolint:gosec // G115: dev_t fits in int on supported platforms
}

// DeviceNumbers splits a raw device id into its major and minor parts.
func DeviceNumbers(rdev uint64) (major, minor uint32) {
	return unix.Major(rdev), unix.Minor(rdev)
}
