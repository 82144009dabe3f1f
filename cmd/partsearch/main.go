// Command partsearch searches two-field record files for a substring,
// splitting the work across data-parallel lanes or worker processes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/internal/config"
	"pkg.jsn.cam/partsearch/internal/logging"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	configPath string
	logLevel   string
	logFormat  string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "partsearch",
		Short: "Parallel partitioned substring search over record files",
		Long: `partsearch finds every record whose label or value contains a pattern.

Records are "label","value" lines. The record set is split into contiguous
chunks, one per worker, and the matches are written in input order.

Backends:
  lanes  every record is tested by its own lane on a data-parallel device
  procs  chunks are sent to worker processes over framed streams`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = a.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Logging.Format = a.logFormat
			}
			if cmd.Flags().Changed("db") {
				cfg.History.DBPath = a.dbPath
			}

			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "console", "log format (console, json)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "run history database (bbolt); empty keeps history in memory")

	root.AddCommand(newSearchCmd(a), newWorkerCmd(a), newRunsCmd(a), newVersionCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
