package ui

import (
	"fmt"
	"io"
	"time"
)

// plainPresenter writes one line per entry to stdout when feed is set, and
// otherwise only failures, verification output and periodic progress.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	srcRoot  string
	tally    tally
	interval time.Duration
	feed     bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	interval := p.interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.tally.observe(ev)
			p.handleEvent(ev)
		case <-ticker.C:
			if !p.feed {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := StripRoot(p.srcRoot, ev.Path)
	switch ev.Type {
	case EntryFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "failed  %s  %s\n", path, errMsg)
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", path)
	}

	if !p.feed {
		return
	}
	switch ev.Type {
	case SnapshotStarted:
		if ev.Target != "" {
			fmt.Fprintf(p.w, "snapshot %s (previous %s)\n", ev.Dest, ev.Target)
		} else {
			fmt.Fprintf(p.w, "snapshot %s\n", ev.Dest)
		}
	case DirCreated:
		fmt.Fprintf(p.w, "mkdir    %s\n", path)
	case FileCopied:
		fmt.Fprintf(p.w, "copy     %s  %s\n", path, FormatBytes(ev.Size))
	case FileLinked:
		fmt.Fprintf(p.w, "link     %s -> %s\n", path, ev.Target)
	case SymlinkCreated:
		fmt.Fprintf(p.w, "symlink  %s -> %s\n", path, ev.Target)
	case SpecialCreated:
		fmt.Fprintf(p.w, "node     %s\n", path)
	case EntryExcluded:
		fmt.Fprintf(p.w, "exclude  %s\n", path)
	case VerifyOK:
		fmt.Fprintf(p.w, "ok       %s\n", path)
	case EntryFailed, VerifyStarted, VerifyFailed:
	}
}

func (p *plainPresenter) printProgress() {
	t := p.tally.totals
	fmt.Fprintf(p.errW, "progress: %s entries  copied %s (%s)  linked %s  %s\n",
		FormatCount(t.Entries()),
		FormatCount(t.FilesCopied), FormatBytes(t.BytesCopied),
		FormatCount(t.FilesLinked),
		FormatRate(rate(t.BytesCopied, p.tally.elapsed())),
	)
}

func (p *plainPresenter) Summary() string {
	return completionSummary(&p.tally)
}

// rate returns bytes per second over d, or 0 when d is not positive.
func rate(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds()
}
