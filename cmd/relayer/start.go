package main

import (
	"github.com/spf13/cobra"

	"github.com/chainsafe/bridge-relayer/pkg/app"
	apprelayer "github.com/chainsafe/bridge-relayer/pkg/app/relayer"
	"github.com/chainsafe/bridge-relayer/pkg/config"
)

// NewStartCommand runs the engine and the HTTP server until SIGINT or SIGTERM
func NewStartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the relayer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			var runner app.Runner = apprelayer.NewServer(cfg)
			return runner.Run()
		},
	}
}
