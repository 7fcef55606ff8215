package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/isnapshot/internal/filter"
	"github.com/bamsammich/isnapshot/internal/stats"
)

// writeFile creates path (and its parents) with data and stamps it with mtime.
func writeFile(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// createScenarioTree populates root with:
//
//	dir/a.txt   "X"
//	dir/b.bin   binary content
//	dir/sub/c   "nested"
//	dir/link -> a.txt
func createScenarioTree(t *testing.T, root string, mtime time.Time) {
	t.Helper()
	writeFile(t, filepath.Join(root, "dir", "a.txt"), []byte("X"), mtime)
	writeFile(t, filepath.Join(root, "dir", "b.bin"), []byte{0x00, 0xff, 0x10, 0x80, 0x7f}, mtime)
	writeFile(t, filepath.Join(root, "dir", "sub", "c"), []byte("nested"), mtime)
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "dir", "link")))
}

// walkInto snapshots src into a fresh snapshot directory named name under
// backupRoot and returns the snapshot path.
func walkInto(
	t *testing.T,
	cfg WalkerConfig,
	src, backupRoot, name, prev string,
) (string, stats.Totals, error) {
	t.Helper()
	snap := filepath.Join(backupRoot, name)
	require.NoError(t, EnsureDirectory(snap, 0o755))
	totals, err := NewWalker(cfg).Walk(context.Background(), src, snap, prev)
	return snap, totals, err
}

func mustExclude(t *testing.T, pattern string) *filter.Exclude {
	t.Helper()
	e, err := filter.NewExclude(pattern)
	require.NoError(t, err)
	return e
}

// requireRegular asserts path is a regular file (not a symlink) holding data.
func requireRegular(t *testing.T, path string, data []byte) {
	t.Helper()
	info, err := os.Lstat(path)
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular(), "%s should be a regular file, got %v", path, info.Mode())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

// requireLink asserts path is a symlink whose target is exactly target.
func requireLink(t *testing.T, path, target string) {
	t.Helper()
	info, err := os.Lstat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "%s should be a symlink", path)
	got, err := os.Readlink(path)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

// chmodCleanup restores write permission on dirs so t.TempDir can be removed.
func chmodCleanup(t *testing.T, dirs ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, d := range dirs {
			_ = os.Chmod(d, 0o755)
		}
	})
}
