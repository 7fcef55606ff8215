package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/bamsammich/isnapshot/internal/event"
	"github.com/bamsammich/isnapshot/internal/filter"
)

// VerifyConfig controls the post-snapshot audit.
type VerifyConfig struct {
	Exclude      *filter.Exclude
	Events       chan<- event.Event
	SnapshotRoot string
	Sources      []string
}

// VerifyResult holds the outcome of a verification pass.
type VerifyResult struct {
	Errors   []VerifyError
	Verified int64
	Failed   int64
}

// VerifyError records one entry whose snapshot copy does not match.
type VerifyError struct {
	Err     error
	Path    string
	SrcHash string
	DstHash string
}

func (e VerifyError) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: source %s, snapshot %s", e.Path, e.SrcHash, e.DstHash)
}

// Verify re-walks the sources and checks every non-excluded entry against
// the snapshot: regular files by BLAKE3 digest (following links into older
// snapshots), symlinks by target, and all other entries by type. Only
// context cancellation is returned as an error; mismatches land in the
// result.
func Verify(ctx context.Context, cfg VerifyConfig) (VerifyResult, error) {
	emitEvent(ctx, cfg.Events, event.Event{Type: event.VerifyStarted, Dest: cfg.SnapshotRoot})

	v := &verifier{cfg: cfg}
	for _, src := range cfg.Sources {
		if err := v.visit(ctx, src); err != nil {
			return v.result, err
		}
	}
	return v.result, nil
}

type verifier struct {
	cfg    VerifyConfig
	result VerifyResult
}

func (v *verifier) visit(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.cfg.Exclude.Match(path) {
		return nil
	}

	e, err := lstatEntry(path)
	if err != nil {
		v.fail(ctx, VerifyError{Path: path, Err: err})
		return nil
	}
	dest := Join(v.cfg.SnapshotRoot, path)

	switch e.Type {
	case Dir:
		info, err := os.Stat(dest)
		if err != nil || !info.IsDir() {
			v.fail(ctx, VerifyError{Path: path, Err: fmt.Errorf("snapshot entry %s is not a directory", dest)})
			return nil
		}
		children, err := os.ReadDir(path)
		if err != nil {
			v.fail(ctx, VerifyError{Path: path, Err: ioErr("readdir", path, err)})
			return nil
		}
		for _, child := range children {
			if err := v.visit(ctx, Join(path, child.Name())); err != nil {
				return err
			}
		}
	case Regular:
		v.compareContent(ctx, path, dest)
	case Symlink:
		want, err := os.Readlink(path)
		if err != nil {
			v.fail(ctx, VerifyError{Path: path, Err: ioErr("readlink", path, err)})
			return nil
		}
		got, err := os.Readlink(dest)
		if err != nil || got != want {
			v.fail(ctx, VerifyError{Path: path, Err: fmt.Errorf("symlink target %q, want %q", got, want)})
			return nil
		}
		v.ok(ctx, path)
	default:
		info, err := os.Lstat(dest)
		if err != nil || fileType(info.Mode()) != e.Type {
			v.fail(ctx, VerifyError{Path: path, Err: fmt.Errorf("snapshot entry is not a %s", e.Type)})
			return nil
		}
		v.ok(ctx, path)
	}
	return nil
}

func (v *verifier) compareContent(ctx context.Context, path, dest string) {
	srcHash, err := HashFile(path)
	if err != nil {
		v.fail(ctx, VerifyError{Path: path, Err: err})
		return
	}
	dstHash, err := HashFile(dest)
	if err != nil {
		v.fail(ctx, VerifyError{Path: path, SrcHash: srcHash, Err: err})
		return
	}
	if srcHash != dstHash {
		v.fail(ctx, VerifyError{Path: path, SrcHash: srcHash, DstHash: dstHash})
		return
	}
	v.ok(ctx, path)
}

func (v *verifier) ok(ctx context.Context, path string) {
	v.result.Verified++
	emitEvent(ctx, v.cfg.Events, event.Event{Type: event.VerifyOK, Path: path})
}

func (v *verifier) fail(ctx context.Context, ve VerifyError) {
	v.result.Failed++
	v.result.Errors = append(v.result.Errors, ve)
	emitEvent(ctx, v.cfg.Events, event.Event{Type: event.VerifyFailed, Path: ve.Path, Error: ve.Err})
}
