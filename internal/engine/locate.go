package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/itchyny/timefmt-go"
)

// DefaultDateFormat names snapshots with second resolution, e.g. 10-19-26-14-03-59.
const DefaultDateFormat = "%m-%d-%y-%H-%M-%S"

// Snapshot is one timestamp-named directory under a backup root.
type Snapshot struct {
	Time time.Time
	Name string
	Path string
}

// SnapshotName formats now with the strftime-style format.
func SnapshotName(now time.Time, format string) string {
	return timefmt.Format(now, format)
}

// parseSnapshotName parses name strictly: the whole name must be consumed
// by format. Times are interpreted in the local zone, matching SnapshotName.
func parseSnapshotName(name, format string) (time.Time, bool) {
	t, err := timefmt.ParseInLocation(name, format, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ListSnapshots returns the snapshots under backupRoot oldest first. Children
// that are not directories, or whose names do not parse strictly with format,
// are not snapshots and are skipped. Entries with the same instant are
// ordered by name. A missing backupRoot yields no snapshots and no error.
func ListSnapshots(backupRoot, format string) ([]Snapshot, error) {
	abs, err := filepath.Abs(backupRoot)
	if err != nil {
		return nil, ioErr("abs", backupRoot, err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("readdir", backupRoot, err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		t, ok := parseSnapshotName(entry.Name(), format)
		if !ok {
			continue
		}
		snaps = append(snaps, Snapshot{
			Time: t,
			Name: entry.Name(),
			Path: filepath.Join(abs, entry.Name()),
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].Time.Equal(snaps[j].Time) {
			return snaps[i].Time.Before(snaps[j].Time)
		}
		return snaps[i].Name < snaps[j].Name
	})
	return snaps, nil
}

// LocatePrevious returns the absolute path of the most recent snapshot under
// backupRoot, or "" when there is none. When several names parse to the same
// instant the lexicographically greatest name wins.
func LocatePrevious(backupRoot, format string) (string, error) {
	snaps, err := ListSnapshots(backupRoot, format)
	if err != nil || len(snaps) == 0 {
		return "", err
	}
	return snaps[len(snaps)-1].Path, nil
}
