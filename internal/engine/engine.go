// Package engine builds incremental snapshots: every run writes a new
// timestamp-named directory under the backup root in which unchanged
// regular files are symlinks into the previous snapshot and everything
// else is materialized afresh with its metadata.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/isnapshot/internal/event"
	"github.com/bamsammich/isnapshot/internal/filter"
	"github.com/bamsammich/isnapshot/internal/stats"
)

// ErrVerifyMismatch is returned when the post-snapshot audit finds entries
// that differ from their source.
var ErrVerifyMismatch = errors.New("snapshot verification failed")

// Config describes a snapshot run.
type Config struct {
	Exclude    *filter.Exclude
	Events     chan<- event.Event
	Now        func() time.Time // defaults to time.Now
	BackupRoot string
	DateFormat string // strftime format; DefaultDateFormat when empty
	Sources    []string
	BWLimit    int64 // bytes per second for fresh copies; 0 for unlimited
	ForceFull  bool
	Verify     bool
}

// Result is the outcome of a snapshot run.
type Result struct {
	Err      error
	Verify   *VerifyResult
	Snapshot string // path of the new snapshot, empty if none was created
	Previous string // absolute path of the snapshot linked against, or ""
	Totals   stats.Totals
}

// Run creates one snapshot of cfg.Sources under cfg.BackupRoot, blocking
// until it is complete. Sources are walked in order and the first failure
// ends the run; the partly written snapshot is left in place.
func Run(ctx context.Context, cfg Config) Result {
	if len(cfg.Sources) == 0 {
		return Result{Err: ErrNoSources}
	}
	if cfg.BackupRoot == "" {
		return Result{Err: errors.New("backup root must not be empty")}
	}
	format := cfg.DateFormat
	if format == "" {
		format = DefaultDateFormat
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	for _, src := range cfg.Sources {
		if escapesRoot(src) {
			return Result{Err: fmt.Errorf("%s: %w", src, ErrSourceEscapes)}
		}
	}

	previous, err := LocatePrevious(cfg.BackupRoot, format)
	if err != nil {
		return Result{Err: fmt.Errorf("locate previous snapshot: %w", err)}
	}

	stamp := now()
	name := SnapshotName(stamp, format)
	if name == "" || strings.Contains(name, "/") {
		return Result{Err: fmt.Errorf("date format %q yields unusable snapshot name %q", format, name)}
	}
	if _, ok := parseSnapshotName(name, format); !ok {
		slog.Warn("snapshot name does not parse back with the date format; later runs will not find it",
			"name", name, "format", format)
	}

	dest := Join(cfg.BackupRoot, name)
	if _, err := os.Lstat(dest); err == nil {
		return Result{Err: &OpError{Kind: KindExists, Op: "create snapshot", Path: dest, Err: ErrSnapshotExists}}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Result{Err: ioErr("lstat", dest, err)}
	}

	if err := checkNotInsideSources(cfg.Sources, dest, cfg.Exclude); err != nil {
		return Result{Err: err}
	}

	if err := EnsureDirectory(dest, 0o755); err != nil {
		return Result{Err: fmt.Errorf("create snapshot directory: %w", err)}
	}

	slog.Info("backing up", "dest", dest)
	if previous != "" {
		slog.Info("using previous snapshot", "previous", previous)
	}
	emitEvent(ctx, cfg.Events, event.Event{Type: event.SnapshotStarted, Dest: dest, Target: previous})

	walkCfg := WalkerConfig{
		Exclude:   cfg.Exclude,
		Events:    cfg.Events,
		ForceFull: cfg.ForceFull,
	}
	if cfg.BWLimit > 0 {
		walkCfg.Limiter = NewBWLimiter(cfg.BWLimit)
	}
	walker := NewWalker(walkCfg)

	result := Result{Snapshot: dest, Previous: previous}
	for _, src := range cfg.Sources {
		t, err := walker.Walk(ctx, src, dest, previous)
		result.Totals = result.Totals.Add(t)
		if err != nil {
			result.Err = err
			return result
		}
	}

	if cfg.Verify {
		vr, err := Verify(ctx, VerifyConfig{
			Sources:      cfg.Sources,
			SnapshotRoot: dest,
			Exclude:      cfg.Exclude,
			Events:       cfg.Events,
		})
		result.Verify = &vr
		switch {
		case err != nil:
			result.Err = err
		case vr.Failed > 0:
			result.Err = fmt.Errorf("%w: %d of %d entries differ", ErrVerifyMismatch, vr.Failed, vr.Failed+vr.Verified)
		}
	}

	return result
}

// checkNotInsideSources rejects a snapshot path that a walk of one of the
// sources would reach, unless the exclusion pattern prunes the way there.
func checkNotInsideSources(sources []string, dest string, exclude *filter.Exclude) error {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return ioErr("abs", dest, err)
	}
	for _, src := range sources {
		absSrc, err := filepath.Abs(src)
		if err != nil {
			return ioErr("abs", src, err)
		}
		if !within(absSrc, absDest) {
			continue
		}
		if prunedOnTheWay(src, absSrc, absDest, exclude) {
			continue
		}
		return fmt.Errorf("%s contains %s: %w", src, dest, ErrDestinationInSource)
	}
	return nil
}

// prunedOnTheWay reports whether the walk from src towards absDest passes a
// path the exclusion pattern matches. Paths are built the way the walker
// builds them, from src as given.
func prunedOnTheWay(src, absSrc, absDest string, exclude *filter.Exclude) bool {
	if exclude.Match(src) {
		return true
	}
	rel, err := filepath.Rel(absSrc, absDest)
	if err != nil || rel == "." {
		return false
	}
	p := src
	for _, seg := range strings.Split(rel, "/") {
		p = Join(p, seg)
		if exclude.Match(p) {
			return true
		}
	}
	return false
}
