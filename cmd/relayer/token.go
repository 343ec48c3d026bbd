package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainsafe/bridge-relayer/pkg/auth"
)

// NewTokenCommand issues an operator token signed with the configured secret
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator JWT for the rescue endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			token, err := auth.NewJWTValidator(cfg.Operator.JWTSecret, cfg.Operator.Issuer).Issue(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject, recorded in rescue logs")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
