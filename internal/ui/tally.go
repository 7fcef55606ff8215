package ui

import (
	"time"

	"github.com/bamsammich/isnapshot/internal/stats"
)

// tally rebuilds run totals from the event stream so presenters never
// share counters with the walker.
type tally struct {
	start      time.Time
	totals     stats.Totals
	failed     int64
	verified   int64
	mismatched int64
}

func (t *tally) observe(ev Event) {
	if t.start.IsZero() {
		t.start = ev.Timestamp
		if t.start.IsZero() {
			t.start = time.Now()
		}
	}
	switch ev.Type {
	case DirCreated:
		t.totals.Dirs++
	case FileCopied:
		t.totals.FilesCopied++
		t.totals.BytesCopied += ev.Size
		t.totals.BytesTotal += ev.Size
	case FileLinked:
		t.totals.FilesLinked++
		t.totals.BytesTotal += ev.Size
	case SymlinkCreated:
		t.totals.Symlinks++
	case SpecialCreated:
		t.totals.Specials++
	case EntryExcluded:
		t.totals.Excluded++
	case EntryFailed:
		t.failed++
	case VerifyOK:
		t.verified++
	case VerifyFailed:
		t.mismatched++
	case SnapshotStarted, VerifyStarted:
	}
}

func (t *tally) elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}
