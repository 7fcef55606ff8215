// Package stats accumulates what a snapshot run did.
package stats

import "fmt"

// Totals counts the work done by one walk. Walks return Totals by value
// and callers merge them with Add, so no counter is shared between runs.
type Totals struct {
	BytesTotal  int64 // size of every regular source file seen
	BytesCopied int64 // size of regular files freshly copied
	FilesCopied int64
	FilesLinked int64 // unchanged files linked to the previous snapshot
	Dirs        int64
	Symlinks    int64
	Specials    int64 // fifos, devices and sockets
	Excluded    int64
}

// Add returns the sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		BytesTotal:  t.BytesTotal + o.BytesTotal,
		BytesCopied: t.BytesCopied + o.BytesCopied,
		FilesCopied: t.FilesCopied + o.FilesCopied,
		FilesLinked: t.FilesLinked + o.FilesLinked,
		Dirs:        t.Dirs + o.Dirs,
		Symlinks:    t.Symlinks + o.Symlinks,
		Specials:    t.Specials + o.Specials,
		Excluded:    t.Excluded + o.Excluded,
	}
}

// Entries returns the number of entries materialized in the snapshot.
func (t Totals) Entries() int64 {
	return t.FilesCopied + t.FilesLinked + t.Dirs + t.Symlinks + t.Specials
}

func (t Totals) String() string {
	return fmt.Sprintf(
		"copied=%d linked=%d dirs=%d symlinks=%d specials=%d excluded=%d bytes=%d/%d",
		t.FilesCopied, t.FilesLinked, t.Dirs, t.Symlinks, t.Specials, t.Excluded,
		t.BytesCopied, t.BytesTotal,
	)
}

// ByteReport is the line printed when byte counting is enabled.
func (t Totals) ByteReport() string {
	return fmt.Sprintf("Copied %d of %d bytes total in backup.", t.BytesCopied, t.BytesTotal)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
