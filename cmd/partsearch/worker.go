package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"pkg.jsn.cam/partsearch/internal/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve search chunks for a procs coordinator",
		Long: `Run a message-passing worker. Each coordinator connection carries one
chunk of record lines; the worker answers with the lines that match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Procs.Listen = listen
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			node := worker.NewNode(worker.Config{
				Logger:        a.logger,
				MaxFrameBytes: a.cfg.Procs.MaxFrameBytes,
				IOTimeout:     a.cfg.GetIOTimeout(),
			})

			srv, err := worker.NewServer(node, a.cfg.Procs.Listen)
			if err != nil {
				return err
			}
			a.logger.Info("worker started", zap.String("node", node.ID()), zap.String("addr", srv.Addr()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", ":9100", "address to accept coordinator connections on")

	return cmd
}
