package ui

import (
	"os"

	"golang.org/x/term"
)

// Terminal describes the stream progress is drawn on.
type Terminal struct {
	Width int // columns; 80 when unknown
	IsTTY bool
}

// DetectTerminal inspects f. Width is only queried for terminals.
func DetectTerminal(f *os.File) Terminal {
	fd := int(f.Fd()) //nolint:gosec // G115: file descriptors fit in int
	if !term.IsTerminal(fd) {
		return Terminal{Width: 80}
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		w = 80
	}
	return Terminal{IsTTY: true, Width: w}
}
