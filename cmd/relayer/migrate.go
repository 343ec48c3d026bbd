package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/bridge-relayer/pkg/dbutil"
	mghelper "github.com/chainsafe/bridge-relayer/pkg/dbutil/migrations"
	"github.com/chainsafe/bridge-relayer/pkg/migrations/relayerdb"
)

// NewMigrateCommand manages the relayer database schema
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(mghelper.Commands, "|") + ">",
		Short:     "Run relayer database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: mghelper.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := dbutil.ConnectDB(cmd.Context(), &cfg.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			migrator := migrate.NewMigrator(db, relayerdb.Migrations)
			if err := mghelper.RunMigrations(cmd.Context(), migrator, logger, args...); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			return nil
		},
	}
}
