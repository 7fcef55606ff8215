package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/isnapshot/internal/event"
)

var baseTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.Local)

// Walker tests chdir into a temp dir and use relative sources so snapshot
// paths stay short. They do not run in parallel: the walker flips the
// process umask.

func TestWalk_FirstSnapshotCopiesEverything(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)

	snap, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	requireRegular(t, filepath.Join(snap, "dir", "a.txt"), []byte("X"))
	requireRegular(t, filepath.Join(snap, "dir", "b.bin"), []byte{0x00, 0xff, 0x10, 0x80, 0x7f})
	requireRegular(t, filepath.Join(snap, "dir", "sub", "c"), []byte("nested"))
	requireLink(t, filepath.Join(snap, "dir", "link"), "a.txt")

	assert.Equal(t, int64(3), totals.FilesCopied)
	assert.Zero(t, totals.FilesLinked)
	assert.Equal(t, int64(2), totals.Dirs)
	assert.Equal(t, int64(1), totals.Symlinks)
	assert.Equal(t, int64(12), totals.BytesTotal)
	assert.Equal(t, int64(12), totals.BytesCopied)
}

func TestWalk_LinksUnchangedFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)

	_, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	changed := []byte("new binary content")
	writeFile(t, filepath.Join("dir", "b.bin"), changed, baseTime.Add(time.Hour))

	snap, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run2", "backups/run1")
	require.NoError(t, err)

	storedA, err := filepath.Abs(filepath.Join("backups", "run1", "dir", "a.txt"))
	require.NoError(t, err)
	storedC, err := filepath.Abs(filepath.Join("backups", "run1", "dir", "sub", "c"))
	require.NoError(t, err)

	requireLink(t, filepath.Join(snap, "dir", "a.txt"), storedA)
	requireLink(t, filepath.Join(snap, "dir", "sub", "c"), storedC)
	requireRegular(t, filepath.Join(snap, "dir", "b.bin"), changed)
	requireLink(t, filepath.Join(snap, "dir", "link"), "a.txt")

	data, err := os.ReadFile(filepath.Join(snap, "dir", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("X"), data)

	assert.Equal(t, int64(2), totals.FilesLinked)
	assert.Equal(t, int64(1), totals.FilesCopied)
	assert.Equal(t, int64(len(changed)), totals.BytesCopied)
	assert.Equal(t, int64(1+len(changed)+6), totals.BytesTotal)
}

func TestWalk_ChainsStayOneHop(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)

	_, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)
	writeFile(t, filepath.Join("dir", "b.bin"), []byte("v2"), baseTime.Add(time.Hour))
	_, _, err = walkInto(t, WalkerConfig{}, "dir", "backups", "run2", "backups/run1")
	require.NoError(t, err)
	snap, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run3", "backups/run2")
	require.NoError(t, err)

	storedA, err := filepath.Abs(filepath.Join("backups", "run1", "dir", "a.txt"))
	require.NoError(t, err)
	storedB, err := filepath.Abs(filepath.Join("backups", "run2", "dir", "b.bin"))
	require.NoError(t, err)

	requireLink(t, filepath.Join(snap, "dir", "a.txt"), storedA)
	requireLink(t, filepath.Join(snap, "dir", "b.bin"), storedB)
	assert.Equal(t, int64(3), totals.FilesLinked)
	assert.Zero(t, totals.FilesCopied)
}

func TestWalk_MtimeWithinSameSecondIsUnchanged(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("dir", "f"), []byte("1"), baseTime)
	_, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	writeFile(t, filepath.Join("dir", "f"), []byte("1"), baseTime.Add(500*time.Millisecond))
	_, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run2", "backups/run1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.FilesLinked)
}

func TestWalk_ForceFullNeverLinks(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)

	_, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)
	snap, totals, err := walkInto(t, WalkerConfig{ForceFull: true}, "dir", "backups", "run2", "backups/run1")
	require.NoError(t, err)

	requireRegular(t, filepath.Join(snap, "dir", "a.txt"), []byte("X"))
	requireRegular(t, filepath.Join(snap, "dir", "sub", "c"), []byte("nested"))
	assert.Equal(t, int64(3), totals.FilesCopied)
	assert.Zero(t, totals.FilesLinked)
}

func TestWalk_PreviousNotRegularIsCopied(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("dir", "f"), []byte("data"), baseTime)

	// The previous snapshot holds a directory where the source has a file.
	require.NoError(t, os.MkdirAll(filepath.Join("backups", "run1", "dir", "f"), 0o755))
	require.NoError(t, os.Chtimes(filepath.Join("backups", "run1", "dir", "f"), baseTime, baseTime))

	snap, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run2", "backups/run1")
	require.NoError(t, err)
	requireRegular(t, filepath.Join(snap, "dir", "f"), []byte("data"))
	assert.Equal(t, int64(1), totals.FilesCopied)
}

func TestWalk_ExcludePrunesSubtree(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)

	cfg := WalkerConfig{Exclude: mustExclude(t, "*/sub")}
	snap, totals, err := walkInto(t, cfg, "dir", "backups", "run1", "")
	require.NoError(t, err)

	_, statErr := os.Lstat(filepath.Join(snap, "dir", "sub"))
	assert.True(t, os.IsNotExist(statErr))
	requireRegular(t, filepath.Join(snap, "dir", "a.txt"), []byte("X"))
	assert.Equal(t, int64(1), totals.Excluded)
	assert.Equal(t, int64(1), totals.Dirs)
}

func TestWalk_ExcludedSourceRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)

	cfg := WalkerConfig{Exclude: mustExclude(t, "dir")}
	snap, totals, err := walkInto(t, cfg, "dir", "backups", "run1", "")
	require.NoError(t, err)

	_, statErr := os.Lstat(filepath.Join(snap, "dir"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, int64(1), totals.Excluded)
	assert.Zero(t, totals.Entries())
}

func TestWalk_RestoresFileMode(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("dir", "secret"), []byte("s"), baseTime)
	require.NoError(t, os.Chmod(filepath.Join("dir", "secret"), 0o600))
	writeFile(t, filepath.Join("dir", "script"), []byte("#!/bin/sh"), baseTime)
	require.NoError(t, os.Chmod(filepath.Join("dir", "script"), 0o751))

	snap, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	for name, want := range map[string]os.FileMode{"secret": 0o600, "script": 0o751} {
		info, err := os.Stat(filepath.Join(snap, "dir", name))
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode().Perm(), name)
		assert.True(t, info.ModTime().Equal(baseTime), name)
	}
}

func TestWalk_ReadOnlyDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("dir", "ro", "f"), []byte("locked in"), baseTime)
	require.NoError(t, os.Chmod(filepath.Join("dir", "ro"), 0o555))
	chmodCleanup(t, filepath.Join("dir", "ro"), filepath.Join("backups", "run1", "dir", "ro"))

	snap, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	requireRegular(t, filepath.Join(snap, "dir", "ro", "f"), []byte("locked in"))
	info, err := os.Stat(filepath.Join(snap, "dir", "ro"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o555), info.Mode().Perm())
}

func TestWalk_RestoresDirectoryTimes(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("dir", "inner", "f"), []byte("x"), baseTime)
	dirTime := baseTime.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join("dir", "inner"), dirTime, dirTime))

	snap, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(snap, "dir", "inner"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(dirTime), "got %v want %v", info.ModTime(), dirTime)
}

func TestWalk_SymlinksAreReproducedVerbatim(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir("dir", 0o755))
	require.NoError(t, os.Symlink("../../nowhere", filepath.Join("dir", "dangling")))
	require.NoError(t, os.Symlink("/etc/hostname", filepath.Join("dir", "abs")))

	snap, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	requireLink(t, filepath.Join(snap, "dir", "dangling"), "../../nowhere")
	requireLink(t, filepath.Join(snap, "dir", "abs"), "/etc/hostname")
	assert.Equal(t, int64(2), totals.Symlinks)
}

func TestWalk_Fifo(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir("dir", 0o755))
	require.NoError(t, unix.Mkfifo(filepath.Join("dir", "pipe"), 0o600))

	snap, totals, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	info, err := os.Lstat(filepath.Join(snap, "dir", "pipe"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, int64(1), totals.Specials)
}

func TestWalk_SingleFileSource(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("etc", "conf"), []byte("k=v"), baseTime)

	snap, totals, err := walkInto(t, WalkerConfig{}, "etc/conf", "backups", "run1", "")
	require.NoError(t, err)
	requireRegular(t, filepath.Join(snap, "etc", "conf"), []byte("k=v"))
	assert.Equal(t, int64(1), totals.FilesCopied)
	assert.Zero(t, totals.Dirs)
}

func TestWalk_StopsAtFirstFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("ff", "a.txt"), []byte("a"), baseTime)
	writeFile(t, filepath.Join("ff", "b.txt"), []byte("b"), baseTime)

	// A directory where a.txt must be written makes its copy fail.
	require.NoError(t, os.MkdirAll(filepath.Join("backups", "run1", "ff", "a.txt"), 0o755))

	events := make(chan event.Event, 32)
	_, totals, err := walkInto(t, WalkerConfig{Events: events}, "ff", "backups", "run1", "")
	close(events)

	require.Error(t, err)
	assert.True(t, IsKind(err, KindIO))
	_, statErr := os.Lstat(filepath.Join("backups", "run1", "ff", "b.txt"))
	assert.True(t, os.IsNotExist(statErr), "b.txt must not be written after a.txt fails")
	assert.Zero(t, totals.FilesCopied)

	var failed []string
	for e := range events {
		if e.Type == event.EntryFailed {
			failed = append(failed, e.Path)
			assert.Error(t, e.Error)
		}
	}
	assert.Equal(t, []string{"ff/a.txt"}, failed)
}

func TestWalk_MissingSource(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := walkInto(t, WalkerConfig{}, "absent", "backups", "run1", "")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindIO))
}

func TestWalk_UnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("dir", "closed", "f"), []byte("x"), baseTime)
	require.NoError(t, os.Chmod(filepath.Join("dir", "closed"), 0o000))
	chmodCleanup(t, filepath.Join("dir", "closed"), filepath.Join("backups", "run1", "dir", "closed"))

	_, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindIO))
}

func TestWalk_Cancelled(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)
	require.NoError(t, EnsureDirectory("backups/run1", 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWalker(WalkerConfig{}).Walk(ctx, "dir", "backups/run1", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalk_EmitsEvents(t *testing.T) {
	t.Chdir(t.TempDir())
	createScenarioTree(t, ".", baseTime)
	_, _, err := walkInto(t, WalkerConfig{}, "dir", "backups", "run1", "")
	require.NoError(t, err)

	events := make(chan event.Event, 64)
	cfg := WalkerConfig{Events: events, Exclude: mustExclude(t, "*/b.bin")}
	_, _, err = walkInto(t, cfg, "dir", "backups", "run2", "backups/run1")
	require.NoError(t, err)
	close(events)

	counts := map[event.Type]int{}
	for e := range events {
		counts[e.Type]++
		assert.False(t, e.Timestamp.IsZero())
		if e.Type == event.FileLinked {
			assert.NotEmpty(t, e.Target)
		}
	}
	assert.Equal(t, 2, counts[event.DirCreated])
	assert.Equal(t, 2, counts[event.FileLinked])
	assert.Equal(t, 1, counts[event.SymlinkCreated])
	assert.Equal(t, 1, counts[event.EntryExcluded])
	assert.Zero(t, counts[event.EntryFailed])
}

func TestSameMtime(t *testing.T) {
	a := time.Unix(100, 0)
	assert.True(t, sameMtime(a, time.Unix(100, 999_999_999)))
	assert.False(t, sameMtime(a, time.Unix(101, 0)))
}
