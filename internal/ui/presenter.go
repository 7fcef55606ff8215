package ui

import (
	"io"
	"time"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	SrcRoot   string // stripped from displayed paths when set
	Width     int    // terminal width for the status line; 80 when zero
	IsTTY     bool
	Quiet     bool
	Verbose   bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(
	cfg Config,
) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.Verbose {
		return &plainPresenter{
			w:        cfg.Writer,
			errW:     cfg.ErrWriter,
			srcRoot:  cfg.SrcRoot,
			feed:     cfg.Verbose,
			interval: 5 * time.Second,
		}
	}
	width := cfg.Width
	if width <= 0 {
		width = 80
	}
	return &statusPresenter{
		w:       cfg.ErrWriter, // status line renders to stderr (the TTY)
		srcRoot: cfg.SrcRoot,
		width:   width,
	}
}
