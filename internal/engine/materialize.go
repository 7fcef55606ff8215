package engine

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/bamsammich/isnapshot/internal/platform"
)

// EnsureDirectory makes path a directory, creating every missing ancestor
// with mode on the way. It does nothing when path already is a directory.
// The process umask applies to every directory it creates.
func EnsureDirectory(path string, mode uint32) error {
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return nil
		}
		return ioErr("mkdir", path, syscall.ENOTDIR)
	}

	prefix := ""
	if strings.HasPrefix(path, "/") {
		prefix = "/"
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if prefix == "" {
			prefix = seg
		} else {
			prefix = Join(prefix, seg)
		}

		info, err := os.Stat(prefix)
		switch {
		case err == nil && info.IsDir():
			continue
		case err == nil:
			return ioErr("mkdir", prefix, syscall.ENOTDIR)
		case !errors.Is(err, fs.ErrNotExist):
			return ioErr("stat", prefix, err)
		}

		if err := unix.Mkdir(prefix, mode&0o7777); err != nil && !errors.Is(err, unix.EEXIST) {
			return ioErr("mkdir", prefix, err)
		}
	}
	return nil
}

// CopyFile streams src into dst, creating dst with the permission bits of
// mode. One buffer of blockSize bytes is allocated and every read and write
// moves at most that much. A write that stores fewer bytes than were read
// fails the copy; whatever reached dst stays there. limiter may be nil.
func CopyFile(
	ctx context.Context,
	src, dst string,
	mode uint32,
	blockSize int,
	limiter *rate.Limiter,
) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, ioErr("open", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(mode&0o777))
	if err != nil {
		return 0, ioErr("open", dst, err)
	}

	if blockSize <= 0 {
		blockSize = platform.DefaultBlockSize
	}
	buf := make([]byte, blockSize)
	w := newRateLimitedWriter(ctx, out, limiter)

	var total int64
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr == nil && written != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				out.Close()
				return total, ioErr("write", dst, werr)
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			out.Close()
			return total, ioErr("read", src, rerr)
		}
	}

	if err := out.Close(); err != nil {
		return total, ioErr("close", dst, err)
	}
	return total, nil
}

// CreateSymlinkTo creates dst as a symlink holding target verbatim.
func CreateSymlinkTo(target, dst string) error {
	if err := os.Symlink(target, dst); err != nil {
		return ioErr("symlink", dst, err)
	}
	return nil
}

// CreateSpecial recreates a fifo, device node or socket at dst.
func CreateSpecial(dst string, e Entry) error {
	switch e.Type {
	case Fifo:
		if err := platform.Mkfifo(dst, e.Mode); err != nil {
			return ioErr("mkfifo", dst, err)
		}
	case CharDevice, BlockDevice, Socket:
		if err := platform.Mknod(dst, e.Mode, e.DevMajor, e.DevMinor); err != nil {
			return ioErr("mknod", dst, err)
		}
	default:
		return &OpError{Kind: KindUnsupported, Op: "mknod", Path: dst, Err: ErrUnsupportedType}
	}
	return nil
}

// RestoreMetadata applies e's access and modification times, then its
// ownership, then its permission bits to path. A failed ownership change
// drops setuid and setgid from the mode applied afterwards. Every step is
// attempted; the failures are returned joined.
func RestoreMetadata(path string, e Entry) error {
	var errs []error

	times := []unix.Timespec{
		unix.NsecToTimespec(e.AccTime.UnixNano()),
		unix.NsecToTimespec(e.ModTime.UnixNano()),
	}
	if err := unix.UtimesNano(path, times); err != nil {
		errs = append(errs, ioErr("utimes", path, err))
	}

	mode := e.Perm()
	if err := unix.Chown(path, int(e.UID), int(e.GID)); err != nil {
		errs = append(errs, permErr("chown", path, err))
		mode &^= unix.S_ISUID | unix.S_ISGID
	}

	if err := unix.Chmod(path, mode); err != nil {
		errs = append(errs, permErr("chmod", path, err))
	}

	return errors.Join(errs...)
}

// restoreLinkOwner sets the ownership of a symlink itself.
func restoreLinkOwner(path string, e Entry) error {
	if err := unix.Lchown(path, int(e.UID), int(e.GID)); err != nil {
		return permErr("lchown", path, err)
	}
	return nil
}

// linkTarget returns what a new snapshot should point at for the stored
// copy at prev. When prev is itself a link from an older generation, its
// target is used instead so chains never grow past one hop.
func linkTarget(prev string) (string, error) {
	info, err := os.Lstat(prev)
	if err != nil {
		return "", ioErr("lstat", prev, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return prev, nil
	}
	target, err := os.Readlink(prev)
	if err != nil {
		return "", ioErr("readlink", prev, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(prev), target)
	}
	return target, nil
}
