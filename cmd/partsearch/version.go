package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"pkg.jsn.cam/partsearch/pkg/partsearch/protocol"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wire protocol version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "partsearch protocol %s\n", protocol.Version)
		},
	}
}
