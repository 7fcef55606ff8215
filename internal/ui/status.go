package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ANSI escape sequences.
const (
	ansiDim       = "\033[2m"
	ansiReset     = "\033[0m"
	ansiClearLine = "\r\033[K"
)

const (
	sparklineWidth  = 12
	statusMinRedraw = 50 * time.Millisecond // don't redraw faster than this
	sampleInterval  = time.Second
)

// statusPresenter keeps a single status line on the terminal, redrawn in
// place, showing entry counts, a copy-throughput sparkline and the path
// being processed. Failures and mismatches scroll above it.
type statusPresenter struct {
	w       io.Writer
	srcRoot string
	width   int
	tally   tally

	current    string
	drawn      bool
	lastDraw   time.Time
	samples    []float64 // bytes copied per sampleInterval
	lastCopied int64
}

func (p *statusPresenter) Run(events <-chan Event) error {
	sampler := time.NewTicker(sampleInterval)
	defer sampler.Stop()

	// Redraw ticker for when no events are flowing (e.g., large file copy).
	redraw := time.NewTicker(250 * time.Millisecond)
	defer redraw.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearStatus()
				return nil
			}
			p.tally.observe(ev)
			p.handleEvent(ev)
			p.maybeDraw()
		case <-redraw.C:
			p.draw()
		case <-sampler.C:
			p.sample()
		}
	}
}

func (p *statusPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case EntryFailed:
		p.clearStatus()
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "✗  %s  %s\n", p.styledPath(ev.Path), errMsg)
	case VerifyStarted:
		p.clearStatus()
		fmt.Fprintf(p.w, "%sverifying checksums...%s\n", ansiDim, ansiReset)
	case VerifyFailed:
		p.clearStatus()
		fmt.Fprintf(p.w, "✗  %s  CHECKSUM MISMATCH\n", p.styledPath(ev.Path))
	case SnapshotStarted:
	default:
		if ev.Path != "" {
			p.current = ev.Path
		}
	}
}

// sample records copy throughput since the previous sample.
func (p *statusPresenter) sample() {
	copied := p.tally.totals.BytesCopied
	p.samples = append(p.samples, float64(copied-p.lastCopied))
	p.lastCopied = copied
	if len(p.samples) > sparklineWidth {
		p.samples = p.samples[len(p.samples)-sparklineWidth:]
	}
}

// maybeDraw redraws the status line if enough time has passed since the last draw.
func (p *statusPresenter) maybeDraw() {
	if time.Since(p.lastDraw) < statusMinRedraw {
		return
	}
	p.draw()
}

func (p *statusPresenter) draw() {
	t := p.tally.totals
	var speed float64
	if n := len(p.samples); n > 0 {
		speed = p.samples[n-1] / sampleInterval.Seconds()
	}

	head := fmt.Sprintf("%s %s  %s entries  %s copied  %s linked  ",
		sparkline(p.samples, sparklineWidth), FormatRate(speed),
		FormatCount(t.Entries()), FormatBytes(t.BytesCopied), FormatCount(t.FilesLinked))

	room := p.width - len([]rune(head)) - 1
	path := ""
	if room > 0 {
		path = truncPath(StripRoot(p.srcRoot, p.current), room)
	}

	fmt.Fprintf(p.w, "%s%s%s%s%s", ansiClearLine, head, ansiDim, path, ansiReset)
	p.drawn = true
	p.lastDraw = time.Now()
}

func (p *statusPresenter) clearStatus() {
	if !p.drawn {
		return
	}
	fmt.Fprint(p.w, ansiClearLine)
	p.drawn = false
}

func (p *statusPresenter) Summary() string {
	return completionSummary(&p.tally)
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the last width samples as block characters scaled to
// the largest of them, left-padded with the lowest block.
func sparkline(samples []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	out := make([]rune, width)
	pad := width - len(samples)
	for i := range pad {
		out[i] = sparkBlocks[0]
	}

	peak := 0.0
	if len(samples) > 0 {
		peak = slices.Max(samples)
	}
	top := len(sparkBlocks) - 1
	for i, v := range samples {
		idx := 0
		if peak > 0 && v > 0 {
			idx = min(int(v/peak*float64(top)), top)
		}
		out[pad+i] = sparkBlocks[idx]
	}
	return string(out)
}

// styledPath returns the path with the directory portion dimmed and the
// filename in normal weight, making the actual filename stand out.
func (p *statusPresenter) styledPath(path string) string {
	path = StripRoot(p.srcRoot, path)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s/%s%s", ansiDim, dir, ansiReset, base)
}

// truncPath shortens a path to fit within maxLen characters.
func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-maxLen+3:]
}

// StripRoot removes a root prefix from a path, returning a clean relative path.
func StripRoot(root, path string) string {
	if root == "" {
		return path
	}
	// Ensure root ends with separator for clean stripping.
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	if strings.HasPrefix(path, root) {
		return path[len(root):]
	}
	return path
}
