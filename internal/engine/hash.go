package engine

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bamsammich/isnapshot/internal/platform"
)

// HashFile returns the hex BLAKE3 digest of the file at path, following
// symlinks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ioErr("open", path, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, platform.DefaultBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", ioErr("read", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
