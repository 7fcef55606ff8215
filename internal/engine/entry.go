package engine

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/bamsammich/isnapshot/internal/platform"
)

// FileType identifies the kind of filesystem entry.
type FileType int

const (
	Unknown FileType = iota
	Regular
	Dir
	Symlink
	Fifo
	CharDevice
	BlockDevice
	Socket
)

func (t FileType) String() string {
	switch t {
	case Regular:
		return "regular"
	case Dir:
		return "directory"
	case Symlink:
		return "symlink"
	case Fifo:
		return "fifo"
	case CharDevice:
		return "char device"
	case BlockDevice:
		return "block device"
	case Socket:
		return "socket"
	default:
		return "unknown"
	}
}

// Entry is the metadata of one source path, taken without following
// symlinks.
type Entry struct {
	ModTime   time.Time
	AccTime   time.Time
	Path      string
	Size      int64
	BlockSize int
	Mode      uint32 // raw st_mode, type bits included
	UID       uint32
	GID       uint32
	DevMajor  uint32
	DevMinor  uint32
	Type      FileType
}

// Perm returns the permission bits including setuid, setgid and sticky.
func (e Entry) Perm() uint32 {
	return e.Mode & 0o7777
}

// lstatEntry reads the metadata of path without following a final symlink.
func lstatEntry(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, ioErr("lstat", path, err)
	}
	return entryFromInfo(path, info)
}

func entryFromInfo(path string, info os.FileInfo) (Entry, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Entry{}, ioErr("lstat", path, fmt.Errorf("unsupported stat type %T", info.Sys()))
	}

	e := Entry{
		Path:      path,
		Type:      fileType(info.Mode()),
		Mode:      platform.RawMode(stat),
		UID:       stat.Uid,
		GID:       stat.Gid,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		AccTime:   platform.AccessTime(stat),
		BlockSize: platform.BlockSize(stat),
	}
	if e.Type == CharDevice || e.Type == BlockDevice {
		e.DevMajor, e.DevMinor = platform.DeviceNumbers(platform.Rdev(stat))
	}
	return e, nil
}

func fileType(mode os.FileMode) FileType {
	switch {
	case mode.IsRegular():
		return Regular
	case mode.IsDir():
		return Dir
	case mode&os.ModeSymlink != 0:
		return Symlink
	case mode&os.ModeNamedPipe != 0:
		return Fifo
	case mode&os.ModeSocket != 0:
		return Socket
	case mode&os.ModeCharDevice != 0:
		return CharDevice
	case mode&os.ModeDevice != 0:
		return BlockDevice
	default:
		return Unknown
	}
}
