package relayerdb

import (
	"context"
	"log"

	mghelper "github.com/chainsafe/bridge-relayer/pkg/dbutil/migrations"
	"github.com/chainsafe/bridge-relayer/pkg/queue"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating processed_events table...")
		if err := mghelper.CreateSchema(ctx, db, &queue.LedgerDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &queue.LedgerDao{}, "job_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping processed_events table...")
		return mghelper.DropTables(ctx, db, &queue.LedgerDao{})
	})
}
