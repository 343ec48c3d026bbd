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
		log.Println("creating transfer_jobs table...")
		if err := mghelper.CreateSchema(ctx, db, &queue.JobDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &queue.JobDao{}, "status", "source_tx_hash"); err != nil {
			return err
		}
		return mghelper.CreateCompositeIndex(ctx, db, &queue.JobDao{},
			"idx_transfer_jobs_due", "status", "next_attempt_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transfer_jobs table...")
		return mghelper.DropTables(ctx, db, &queue.JobDao{})
	})
}
