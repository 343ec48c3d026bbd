package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apprelayer "github.com/chainsafe/bridge-relayer/pkg/app/relayer"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

type auditOptions struct {
	direction string
	from      uint64
	to        uint64
}

// NewAuditCommand compares source events in a range against the queue and the destination
func NewAuditCommand(opts *RootOptions) *cobra.Command {
	a := &auditOptions{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report source events in a position range that were never settled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := queue.ParseDirection(a.direction)
			if err != nil {
				return err
			}
			if a.to < a.from {
				return fmt.Errorf("--to (%d) is below --from (%d)", a.to, a.from)
			}

			return opts.withRuntime(cmd.Context(), func(rt *apprelayer.Runtime, logger *zap.Logger) error {
				report, err := rt.Engine.Auditor().Audit(cmd.Context(), dir, a.from, a.to)
				if err != nil {
					return err
				}
				logger.Info("Audit finished",
					zap.String("direction", string(dir)),
					zap.Uint64("from", a.from),
					zap.Uint64("to", a.to))
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&a.direction, "direction", "s2d", "direction to audit (s2d|d2s)")
	cmd.Flags().Uint64Var(&a.from, "from", 0, "first block or slot")
	cmd.Flags().Uint64Var(&a.to, "to", 0, "last block or slot")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
