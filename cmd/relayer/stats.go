package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apprelayer "github.com/chainsafe/bridge-relayer/pkg/app/relayer"
)

// NewStatsCommand prints the monitor snapshot
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print queue counts, balances and scan positions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd.Context(), func(rt *apprelayer.Runtime, _ *zap.Logger) error {
				snap, err := rt.Engine.Monitor().Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
}
