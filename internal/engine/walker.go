package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/isnapshot/internal/event"
	"github.com/bamsammich/isnapshot/internal/filter"
	"github.com/bamsammich/isnapshot/internal/platform"
	"github.com/bamsammich/isnapshot/internal/stats"
)

// WalkerConfig controls a snapshot walk.
type WalkerConfig struct {
	Exclude   *filter.Exclude
	Limiter   *rate.Limiter      // throttles fresh copies; nil for no limit
	Events    chan<- event.Event // optional; sends block until received
	ForceFull bool               // copy every regular file, never link
}

// Walker materializes source trees into a snapshot. It walks depth first
// on the calling goroutine and keeps no state between calls.
type Walker struct {
	cfg WalkerConfig
}

// NewWalker creates a walker with the given config.
func NewWalker(cfg WalkerConfig) *Walker {
	return &Walker{cfg: cfg}
}

// Walk snapshots source into newRoot/source. When previousRoot is set,
// regular files whose mtime matches previousRoot/source are linked to the
// stored copy instead of being copied. Children of a directory are visited
// in name order and the first failure stops the rest of that directory;
// entries already written stay on disk. The returned Totals cover
// everything done up to the point of failure.
func (w *Walker) Walk(ctx context.Context, source, newRoot, previousRoot string) (stats.Totals, error) {
	if previousRoot != "" {
		abs, err := filepath.Abs(previousRoot)
		if err != nil {
			return stats.Totals{}, ioErr("abs", previousRoot, err)
		}
		previousRoot = abs
	}

	// Directory sources get their ancestors from EnsureDirectory; anything
	// else needs the parent created here.
	if info, err := os.Lstat(source); err == nil && !info.IsDir() && !w.cfg.Exclude.Match(source) {
		parent := filepath.Dir(Join(newRoot, source))
		if err := EnsureDirectory(parent, 0o755); err != nil {
			w.failed(ctx, source, parent, err)
			return stats.Totals{}, err
		}
	}
	return w.walk(ctx, source, newRoot, previousRoot)
}

func (w *Walker) walk(ctx context.Context, source, newRoot, prevRoot string) (stats.Totals, error) {
	if err := ctx.Err(); err != nil {
		return stats.Totals{}, err
	}

	e, err := lstatEntry(source)
	if err != nil {
		w.failed(ctx, source, "", err)
		return stats.Totals{}, err
	}

	if w.cfg.Exclude.Match(source) {
		slog.Debug("exclude", "path", source)
		w.emit(ctx, event.Event{Type: event.EntryExcluded, Path: source})
		return stats.Totals{Excluded: 1}, nil
	}

	dest := Join(newRoot, source)
	prev := ""
	if prevRoot != "" {
		prev = Join(prevRoot, source)
	}

	// Directories report their own failures; child failures were reported
	// where they happened.
	if e.Type == Dir {
		return w.walkDir(ctx, e, dest, newRoot, prevRoot)
	}

	var totals stats.Totals
	switch e.Type {
	case Regular:
		totals, err = w.regular(ctx, e, dest, prev)
	case Symlink:
		totals, err = w.symlink(ctx, e, dest)
	case Fifo, CharDevice, BlockDevice, Socket:
		totals, err = w.special(ctx, e, dest)
	default:
		err = &OpError{Kind: KindUnsupported, Op: "snapshot", Path: source, Err: ErrUnsupportedType}
	}
	if err != nil {
		w.failed(ctx, source, dest, err)
	}
	return totals, err
}

func (w *Walker) walkDir(ctx context.Context, e Entry, dest, newRoot, prevRoot string) (stats.Totals, error) {
	// Owner rwx so the directory can be filled even when the source is
	// read-only; the real mode is applied once the children are done.
	saved := platform.Umask(0)
	err := EnsureDirectory(dest, e.Perm()|0o700)
	platform.Umask(saved)
	if err != nil {
		w.failed(ctx, e.Path, dest, err)
		return stats.Totals{}, err
	}

	slog.Debug("mkdir", "path", e.Path, "dest", dest)
	w.emit(ctx, event.Event{Type: event.DirCreated, Path: e.Path, Dest: dest})
	totals := stats.Totals{Dirs: 1}

	children, err := os.ReadDir(e.Path)
	if err != nil {
		err = ioErr("readdir", e.Path, err)
		w.failed(ctx, e.Path, dest, err)
		return totals, err
	}

	for _, child := range children {
		t, err := w.walk(ctx, Join(e.Path, child.Name()), newRoot, prevRoot)
		totals = totals.Add(t)
		if err != nil {
			return totals, err
		}
	}

	meta := e
	meta.Mode = e.Mode &^ uint32(saved) //nolint:gosec // G115: umask is 0-0777
	if err := RestoreMetadata(dest, meta); err != nil {
		w.failed(ctx, e.Path, dest, err)
		return totals, err
	}
	return totals, nil
}

func (w *Walker) regular(ctx context.Context, e Entry, dest, prev string) (stats.Totals, error) {
	totals := stats.Totals{BytesTotal: e.Size}

	if w.unchanged(e, prev) {
		target, err := linkTarget(prev)
		if err != nil {
			return totals, err
		}
		if err := CreateSymlinkTo(target, dest); err != nil {
			return totals, err
		}
		slog.Debug("mirror", "path", e.Path, "target", target)
		w.emit(ctx, event.Event{
			Type: event.FileLinked, Path: e.Path, Dest: dest, Target: target, Size: e.Size,
		})
		totals.FilesLinked = 1
		return totals, nil
	}

	slog.Debug("copy", "path", e.Path, "dest", dest)
	if _, err := CopyFile(ctx, e.Path, dest, e.Mode, e.BlockSize, w.cfg.Limiter); err != nil {
		return totals, err
	}
	if err := RestoreMetadata(dest, e); err != nil {
		return totals, err
	}
	w.emit(ctx, event.Event{Type: event.FileCopied, Path: e.Path, Dest: dest, Size: e.Size})
	totals.FilesCopied = 1
	totals.BytesCopied = e.Size
	return totals, nil
}

// unchanged reports whether the previous snapshot holds a regular file at
// prev with the same modification time as e, compared to the second.
func (w *Walker) unchanged(e Entry, prev string) bool {
	if w.cfg.ForceFull || prev == "" {
		return false
	}
	info, err := os.Stat(prev)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return sameMtime(info.ModTime(), e.ModTime)
}

func sameMtime(a, b time.Time) bool {
	return a.Unix() == b.Unix()
}

func (w *Walker) symlink(ctx context.Context, e Entry, dest string) (stats.Totals, error) {
	target, err := os.Readlink(e.Path)
	if err != nil {
		return stats.Totals{}, ioErr("readlink", e.Path, err)
	}
	if err := CreateSymlinkTo(target, dest); err != nil {
		return stats.Totals{}, err
	}
	if err := restoreLinkOwner(dest, e); err != nil {
		return stats.Totals{}, err
	}
	slog.Debug("symlink", "path", e.Path, "target", target)
	w.emit(ctx, event.Event{Type: event.SymlinkCreated, Path: e.Path, Dest: dest, Target: target})
	return stats.Totals{Symlinks: 1}, nil
}

func (w *Walker) special(ctx context.Context, e Entry, dest string) (stats.Totals, error) {
	if err := CreateSpecial(dest, e); err != nil {
		return stats.Totals{}, err
	}
	if err := RestoreMetadata(dest, e); err != nil {
		return stats.Totals{}, err
	}
	slog.Debug("node", "path", e.Path, "type", e.Type.String())
	w.emit(ctx, event.Event{Type: event.SpecialCreated, Path: e.Path, Dest: dest})
	return stats.Totals{Specials: 1}, nil
}

func (w *Walker) failed(ctx context.Context, path, dest string, err error) {
	slog.Error("snapshot entry failed", "path", path, "error", err)
	w.emit(ctx, event.Event{Type: event.EntryFailed, Path: path, Dest: dest, Error: err})
}

func (w *Walker) emit(ctx context.Context, e event.Event) {
	emitEvent(ctx, w.cfg.Events, e)
}

// emitEvent delivers e unless ch is nil or ctx is done first.
func emitEvent(ctx context.Context, ch chan<- event.Event, e event.Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	case <-ctx.Done():
	}
}
