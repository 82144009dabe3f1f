package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/internal/config"
	"pkg.jsn.cam/partsearch/internal/coordinator"
	"pkg.jsn.cam/partsearch/internal/history"
	"pkg.jsn.cam/partsearch/internal/lanes"
	"pkg.jsn.cam/partsearch/internal/sink"
	"pkg.jsn.cam/partsearch/internal/transport"
	"pkg.jsn.cam/partsearch/internal/worker"
	"pkg.jsn.cam/partsearch/pkg/partsearch"
)

type searchFlags struct {
	inputs     []string
	peers      []string
	output     string
	backend    string
	ignoreCase bool
	quiet      bool
	perWorker  bool
}

func newSearchCmd(a *app) *cobra.Command {
	f := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <pattern> <parallelism>",
		Short: "Search record files for a pattern",
		Long: `Search every input file for records whose label or value contains pattern.

parallelism is the number of lanes per block for the lanes backend, and the
number of workers (including this process) for the procs backend. With
--peer, the procs backend uses one remote worker per peer instead of
spawning in-process workers.`,
		Example: `  partsearch search Ali 256 --input phonebook.txt
  partsearch search 229 3 --backend procs --output matches.txt.zst
  partsearch search AKTER 2 --backend procs --peer 10.0.0.2:9100 --output s3://results/akter.txt`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				_ = cmd.Usage()
				return fmt.Errorf("search takes a pattern and a parallelism degree, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, f, args[0], args[1])
		},
	}

	cmd.Flags().StringArrayVarP(&f.inputs, "input", "i", nil, "record file to search (repeatable, searched in order)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file, .zst for compressed, or s3://bucket/key")
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "execution backend (lanes, procs)")
	cmd.Flags().StringArrayVar(&f.peers, "peer", nil, "remote worker address for the procs backend (repeatable)")
	cmd.Flags().BoolVar(&f.ignoreCase, "ignore-case", false, "match ASCII letters case-insensitively")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print matched records")
	cmd.Flags().BoolVar(&f.perWorker, "per-worker", false, "print a completion line per worker")

	return cmd
}

// apply merges the command line over the loaded configuration.
func (f *searchFlags) apply(cmd *cobra.Command, cfg *config.Config, parallelism string) error {
	n, err := strconv.Atoi(parallelism)
	if err != nil {
		return fmt.Errorf("invalid parallelism %q: %w", parallelism, err)
	}
	cfg.Search.Parallelism = n

	if cmd.Flags().Changed("input") {
		cfg.Search.Inputs = f.inputs
	}
	if cmd.Flags().Changed("output") {
		cfg.Search.Output = f.output
	}
	if cmd.Flags().Changed("backend") {
		cfg.Search.Backend = f.backend
	}
	if cmd.Flags().Changed("peer") {
		cfg.Procs.Peers = f.peers
	}
	if cmd.Flags().Changed("ignore-case") {
		cfg.Search.IgnoreCase = f.ignoreCase
	}

	return cfg.Validate()
}

func runSearch(cmd *cobra.Command, a *app, f *searchFlags, pattern, parallelism string) error {
	cfg := a.cfg
	if err := f.apply(cmd, cfg, parallelism); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, cleanup, err := newTransport(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := sink.Open(cfg.Search.Output, cfg.Sink.S3)
	if err != nil {
		return err
	}

	runs, err := openHistory(cfg, a.logger)
	if err != nil {
		return err
	}
	defer runs.Close()

	c, err := coordinator.New(coordinator.Config{
		Transport: tr,
		Sink:      out,
		History:   runs,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	report, err := c.Run(ctx, coordinator.Request{
		Source:     partsearch.FileSource{Paths: cfg.Search.Inputs},
		Pattern:    pattern,
		IgnoreCase: cfg.Search.IgnoreCase,
	})
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report, !f.quiet, f.perWorker || report.Backend == config.BackendProcs)

	return nil
}

// newTransport builds the configured backend. cleanup releases whatever
// the transport was built on and must run after the search.
func newTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transport.Transport, func(), error) {
	switch cfg.Search.Backend {
	case config.BackendLanes:
		dev := lanes.NewDevice(lanes.Options{
			Logger:             logger,
			MaxThreadsPerBlock: cfg.Lanes.MaxThreadsPerBlock,
			Schedulers:         cfg.Lanes.CPUWorkers,
		})
		tr := transport.NewBulk(dev, transport.BulkOptions{
			Logger:  logger,
			Threads: cfg.Search.Parallelism,
		})
		return tr, func() { dev.Close() }, nil

	case config.BackendProcs:
		opts := transport.MessageOptions{
			Logger:        logger,
			MaxFrameBytes: cfg.Procs.MaxFrameBytes,
			IOTimeout:     cfg.GetIOTimeout(),
		}

		if len(cfg.Procs.Peers) > 0 {
			if want := len(cfg.Procs.Peers) + 1; cfg.Search.Parallelism != want {
				logger.Warn("parallelism follows the peer list",
					zap.Int("requested", cfg.Search.Parallelism),
					zap.Int("workers", want))
			}
			opts.Peers = len(cfg.Procs.Peers)
			opts.Dial = transport.TCPDialer(cfg.Procs.Peers, cfg.GetDialTimeout())
			return transport.NewMessage(opts), func() {}, nil
		}

		spawnCtx, cancel := context.WithCancel(ctx)
		pipes := worker.NewPipes(spawnCtx, worker.NewNode(worker.Config{
			Logger:        logger,
			MaxFrameBytes: cfg.Procs.MaxFrameBytes,
			IOTimeout:     cfg.GetIOTimeout(),
		}))
		opts.Peers = cfg.Search.Parallelism - 1
		opts.Dial = pipes.Dial

		return transport.NewMessage(opts), func() {
			cancel()
			if err := pipes.Wait(); err != nil {
				logger.Warn("in-process worker failed", zap.Error(err))
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("invalid backend: %q", cfg.Search.Backend)
}

func openHistory(cfg *config.Config, logger *zap.Logger) (history.Store, error) {
	opts := history.Options{Logger: logger, Keep: cfg.History.MaxRuns}
	if cfg.History.DBPath == "" {
		return history.NewNoOpStore(), nil
	}

	runs, err := history.NewBboltStore(cfg.History.DBPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return runs, nil
}

func printReport(w io.Writer, report *coordinator.Report, matches, perWorker bool) {
	res := report.Result

	fmt.Fprintf(w, "Total records: %s\n", humanize.Comma(int64(res.Total)))
	if report.Load.Skipped > 0 {
		fmt.Fprintf(w, "Skipped lines: %s\n", humanize.Comma(int64(report.Load.Skipped)))
	}

	if matches {
		fmt.Fprintln(w, "Matched records:")
		for _, r := range res.Matches {
			fmt.Fprintln(w, r.String())
		}
	}

	if perWorker {
		for _, ws := range res.Workers {
			fmt.Fprintf(w, "worker %d done: %s records, %s matches in %.6f seconds\n",
				ws.WorkerID,
				humanize.Comma(int64(ws.Chunk.Len())),
				humanize.Comma(int64(ws.Matches)),
				ws.Elapsed.Seconds())
		}
	}

	fmt.Fprintln(w, "Search completed")
	fmt.Fprintf(w, "Matches: %s of %s across %d workers\n",
		humanize.Comma(int64(res.MatchCount)),
		humanize.Comma(int64(res.Total)),
		report.Workers)
	fmt.Fprintf(w, "Time: %.6f seconds\n", res.Elapsed.Seconds())
	if report.Output != "" {
		fmt.Fprintf(w, "Output written to %s\n", report.Output)
	}
}
