package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/isnapshot/internal/config"
	"github.com/bamsammich/isnapshot/internal/engine"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list <backup-root>",
		Short: "List the snapshots under a backup root, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := opts.dateFormat
			if !cmd.Flags().Changed("date-format") {
				if cfg, err := config.Load(); err == nil && cfg.Defaults.DateFormat != nil {
					format = *cfg.Defaults.DateFormat
				}
			}

			snaps, err := engine.ListSnapshots(args[0], format)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, s := range snaps {
				marker := ""
				if i == len(snaps)-1 {
					marker = "  (latest)"
				}
				fmt.Fprintf(out, "%s  %s%s\n", s.Name, s.Time.Format(time.DateTime), marker)
			}
			return nil
		},
	}
}
