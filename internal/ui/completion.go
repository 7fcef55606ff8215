package ui

import "fmt"

// completionSummary builds a final summary line from a tally.
// Format: done ✓  entries 48,917  copied 312 (2.1 GB)  linked 48,101  time 3m 17s  errors 0
func completionSummary(t *tally) string {
	icon := "✓"
	if t.failed > 0 || t.mismatched > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  entries %s  copied %s (%s)  linked %s  time %s",
		icon,
		FormatCount(t.totals.Entries()),
		FormatCount(t.totals.FilesCopied),
		FormatBytes(t.totals.BytesCopied),
		FormatCount(t.totals.FilesLinked),
		FormatDuration(t.elapsed()),
	)

	if t.totals.Excluded > 0 {
		base += fmt.Sprintf("  excluded %s", FormatCount(t.totals.Excluded))
	}
	if t.verified > 0 || t.mismatched > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(t.verified))
	}

	base += fmt.Sprintf("  errors %d", t.failed+t.mismatched)

	return base
}
