//go:build linux

package platform

import (
	"syscall"
	"time"
)

// AccessTime returns the access time from a syscall.Stat_t.
func AccessTime(stat *syscall.Stat_t) time.Time {
	return time.Unix(int64(stat.Atim.Sec), int64(stat.Atim.Nsec)) //nolint:unconvert // int32 on 32-bit arches
}

// Rdev returns the device id of a character or block special file.
func Rdev(stat *syscall.Stat_t) uint64 {
	return uint64(stat.Rdev) //nolint:unconvert // uint32 on some arches
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
	return uint32(stat.Mode) //nolint:unconvert // width differs across arches
}
