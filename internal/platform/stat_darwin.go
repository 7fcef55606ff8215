//go:build darwin

package platform

import (
	"syscall"
	"time"
)

// AccessTime returns the access time from a syscall.Stat_t.
func AccessTime(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec)
}

// Rdev returns the device id of a character or block special file.
func Rdev(stat *syscall.Stat_t) uint64 {
	return uint64(uint32(stat.Rdev)) //nolint:gosec // G115: dev_t is int32 on darwin
}

// BlockSize returns the preferred I/O block size of the file, or
// DefaultBlockSize when the filesystem reports none.
func BlockSize(stat *syscall.Stat_t) int {
	if stat.Blksize <= 0 {
		return DefaultBlockSize
	}
	return int(stat.Blksize)
}

// RawMode returns st_mode, type bits included.
func RawMode(stat *syscall.Stat_t) uint32 {
	return uint32(stat.Mode)
}
