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
		log.Println("creating scan_positions table...")
		return mghelper.CreateSchema(ctx, db, &queue.ScanPositionDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping scan_positions table...")
		return mghelper.DropTables(ctx, db, &queue.ScanPositionDao{})
	})
}
