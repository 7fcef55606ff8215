package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/isnapshot/internal/config"
	"github.com/bamsammich/isnapshot/internal/engine"
	"github.com/bamsammich/isnapshot/internal/event"
	"github.com/bamsammich/isnapshot/internal/filter"
	"github.com/bamsammich/isnapshot/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// options holds the parsed command line.
type options struct {
	dateFormat  string
	exclude     string
	logFile     string
	bwLimit     sizeFlag
	verbose     bool
	quiet       bool
	full        bool
	countBytes  bool
	verify      bool
	showVersion bool
}

// sizeFlag is a pflag.Value accepting human sizes such as 50M or 1G.
type sizeFlag struct {
	raw   string
	bytes int64
}

var _ pflag.Value = (*sizeFlag)(nil)

func (s *sizeFlag) String() string { return s.raw }
func (*sizeFlag) Type() string     { return "size" }

func (s *sizeFlag) Set(val string) error {
	n, err := filter.ParseSize(val)
	if err != nil {
		return err
	}
	s.raw, s.bytes = val, n
	return nil
}

func run(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return execute(rootCmd)
}

func execute(rootCmd *cobra.Command) int {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "isnapshot [flags] <source>... <destination>",
		Short: "Incremental timestamped snapshots that link unchanged files to the previous run",
		Long: `isnapshot copies one or more source trees into a new directory under the
destination, named after the current time. Regular files whose modification
time matches the most recent earlier snapshot are stored as symlinks into
that snapshot instead of being copied again.

A first source named like a subcommand (list, gen-docs) runs that subcommand.
Write it as ./list, or put -- before the sources: isnapshot -- list /backup`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.MinimumNArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "isnapshot %s\n", version)
				return nil
			}
			return runBackup(cmd, opts, args[:len(args)-1], args[len(args)-1])
		},
	}

	rootCmd.Flags().BoolVar(&opts.showVersion, "version", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "list every entry and log at debug level")
	rootCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().
		BoolVarP(&opts.full, "full", "f", false, "copy every regular file instead of linking unchanged ones")
	rootCmd.Flags().
		BoolVarP(&opts.countBytes, "count-bytes", "c", false, "report bytes copied and total bytes backed up")
	rootCmd.Flags().
		StringVarP(&opts.exclude, "exclude", "e", "", "skip entries whose path matches PATTERN (fnmatch)")
	rootCmd.Flags().BoolVar(&opts.verify, "verify", false, "verify the new snapshot against the sources (BLAKE3)")
	rootCmd.Flags().Var(&opts.bwLimit, "bwlimit", "bandwidth limit for fresh copies (e.g. 50M, 1G)")
	rootCmd.Flags().StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")
	rootCmd.PersistentFlags().
		StringVarP(&opts.dateFormat, "date-format", "d", engine.DefaultDateFormat, "strftime format of snapshot names")

	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newDocsCmd())

	return rootCmd
}

func runBackup(cmd *cobra.Command, opts *options, sources []string, dst string) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	closeLog, err := setupLogging(stderr, opts)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := loadConfig(cmd, opts); err != nil {
		return err
	}

	exclude, err := filter.NewExclude(opts.exclude)
	if err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	// Set up context with signal handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan event.Event, 256)

	// When --log is set, tee events through a logging goroutine that writes
	// structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	tty := ui.DetectTerminal(os.Stderr)
	presenter := ui.NewPresenter(ui.Config{
		Writer:    stdout,
		ErrWriter: stderr,
		IsTTY:     tty.IsTTY && stderr == os.Stderr,
		Width:     tty.Width,
		Quiet:     opts.quiet,
		Verbose:   opts.verbose,
	})

	engineCfg := engine.Config{
		Sources:    sources,
		BackupRoot: dst,
		DateFormat: opts.dateFormat,
		Exclude:    exclude,
		ForceFull:  opts.full,
		Verify:     opts.verify,
		BWLimit:    opts.bwLimit.bytes,
		Events:     events,
	}

	slog.Debug("starting snapshot",
		"sources", sources,
		"dst", dst,
		"date_format", opts.dateFormat,
		"exclude", opts.exclude,
		"full", opts.full,
	)

	// Presenter runs in the background, engine in the foreground.
	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engineCfg)
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(stderr, "presenter: %v\n", presenterErr)
	}

	if !opts.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(stderr, summary)
		}
	}

	if result.Err != nil {
		slog.Error("backup failed", "snapshot", result.Snapshot, "error", result.Err)
		return &exitError{code: 1}
	}

	slog.Debug("snapshot complete", "snapshot", result.Snapshot, "totals", result.Totals.String())
	if opts.countBytes {
		fmt.Fprintln(stdout, result.Totals.ByteReport())
	}
	return nil
}

// setupLogging installs the default slog logger: text on stderr at a level
// picked by -v/-q, plus a debug-level JSON file when --log is set.
func setupLogging(stderr io.Writer, opts *options) (func(), error) {
	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	} else if opts.quiet {
		logLevel = slog.LevelError
	}
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var logHandler slog.Handler = textHandler
	closeLog := func() {}
	if opts.logFile != "" {
		lf, err := os.Create(opts.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return closeLog, nil
}

// loadConfig overlays config file defaults onto opts. A broken config file
// is reported and ignored.
func loadConfig(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "path", config.Path(), "error", err)
		return nil
	}
	for _, key := range cfg.Unknown {
		slog.Warn("unknown config key", "path", config.Path(), "key", key)
	}
	return applyConfigDefaults(cmd, cfg.Defaults, opts)
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *options) error {
	if !cmd.Flags().Changed("date-format") && defaults.DateFormat != nil {
		opts.dateFormat = *defaults.DateFormat
	}
	if !cmd.Flags().Changed("exclude") && defaults.Exclude != nil {
		opts.exclude = *defaults.Exclude
	}
	if !cmd.Flags().Changed("full") && defaults.Full != nil {
		opts.full = *defaults.Full
	}
	if !cmd.Flags().Changed("count-bytes") && defaults.CountBytes != nil {
		opts.countBytes = *defaults.CountBytes
	}
	if !cmd.Flags().Changed("verify") && defaults.Verify != nil {
		opts.verify = *defaults.Verify
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		if err := opts.bwLimit.Set(*defaults.BWLimit); err != nil {
			return fmt.Errorf("invalid bwlimit in %s: %w", config.Path(), err)
		}
	}
	return nil
}

// teeEvents logs each event at debug level and forwards it.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
			}
			if ev.Dest != "" {
				attrs = append(attrs, slog.String("dest", ev.Dest))
			}
			if ev.Target != "" {
				attrs = append(attrs, slog.String("target", ev.Target))
			}
			if ev.Size > 0 {
				attrs = append(attrs, slog.Int64("size", ev.Size))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "isnapshot.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
