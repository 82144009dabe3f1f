package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkg.jsn.cam/partsearch/internal/history"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.History.DBPath == "" {
				return fmt.Errorf("no run history configured (use --db or history.db_path)")
			}

			runs, err := history.NewBboltStore(a.cfg.History.DBPath, history.Options{Logger: a.logger})
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer runs.Close()

			list, err := runs.ListRuns(limit)
			if err != nil {
				return err
			}

			printRuns(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list, 0 for all")

	return cmd
}

func printRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}

	fmt.Fprintf(w, "%-36s %-7s %-6s %-20s %7s %9s %9s %12s  %s\n",
		"RUN ID", "STATUS", "BACKEND", "PATTERN", "WORKERS", "RECORDS", "MATCHES", "TIME", "STARTED")
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────────────────────────────────────────────────────────────────────")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s %-7s %-6s %-20q %7d %9s %9s %12s  %s\n",
			r.ID,
			r.Status,
			r.Backend,
			r.Pattern,
			r.Workers,
			humanize.Comma(int64(r.Records)),
			humanize.Comma(int64(r.Matches)),
			r.Elapsed,
			humanize.Time(r.Started))
		if r.Status == history.StatusFailed {
			fmt.Fprintf(w, "  failed in %s: %s\n", r.Stage, r.Error)
		}
	}
}
