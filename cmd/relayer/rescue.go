package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apprelayer "github.com/chainsafe/bridge-relayer/pkg/app/relayer"
	"github.com/chainsafe/bridge-relayer/pkg/operator"
)

// NewRescueCommand groups the operator actions on failed jobs
func NewRescueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescue",
		Short: "Operator actions on failed jobs",
	}

	cmd.AddCommand(rescueAction(opts, "reverify", "Re-run reconciliation and complete the job if the action exists",
		func(ctx context.Context, svc operator.Service, id string) (any, error) {
			return svc.Reverify(ctx, id)
		}))
	cmd.AddCommand(rescueAction(opts, "execute", "Run the job through reconciliation and execution once",
		func(ctx context.Context, svc operator.Service, id string) (any, error) {
			return svc.ForceExecute(ctx, id)
		}))

	var reason string
	fail := rescueAction(opts, "fail", "Mark a job failed so it is never executed",
		func(ctx context.Context, svc operator.Service, id string) (any, error) {
			return svc.MarkFailed(ctx, id, reason)
		})
	fail.Flags().StringVar(&reason, "reason", "", "reason recorded on the job")
	cmd.AddCommand(fail)

	return cmd
}

func rescueAction(opts *RootOptions, use, short string, action func(context.Context, operator.Service, string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), func(rt *apprelayer.Runtime, logger *zap.Logger) error {
				svc := operator.NewLog(operator.NewEngineService(rt.Engine), logger.Named("operator"))
				res, err := action(cmd.Context(), svc, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
