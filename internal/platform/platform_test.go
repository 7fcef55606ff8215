package platform

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDeviceNumbers(t *testing.T) {
	t.Parallel()

	major, minor := DeviceNumbers(unix.Mkdev(8, 17))
	assert.Equal(t, uint32(8), major)
	assert.Equal(t, uint32(17), minor)
}

func TestMkfifo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipe")
	require.NoError(t, Mkfifo(path, 0o600))

	info, err := os.Lstat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)
}

func TestStatHelpers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o640))

	info, err := os.Lstat(path)
	require.NoError(t, err)
	st, ok := info.Sys().(*syscall.Stat_t)
	require.True(t, ok)

	assert.Positive(t, BlockSize(st))
	assert.Equal(t, uint32(unix.S_IFREG), RawMode(st)&unix.S_IFMT)
	assert.False(t, AccessTime(st).IsZero())
}
