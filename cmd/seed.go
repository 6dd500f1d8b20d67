package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/pos-sync/internal/config"
	"github.com/jmehdipour/pos-sync/internal/db"
	"github.com/jmehdipour/pos-sync/internal/model"
	"github.com/jmehdipour/pos-sync/internal/repository"
	"github.com/jmehdipour/pos-sync/internal/service/queue"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the outbox with demo pending mutations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		dbx, err := db.NewConnection(cfg.LocalDB.DSN, db.Opts{
			Driver:          cfg.LocalDB.Driver,
			MaxOpenConns:    cfg.LocalDB.MaxOpenConns,
			MaxIdleConns:    cfg.LocalDB.MaxIdleConns,
			ConnMaxLifetime: cfg.LocalDB.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.LocalDB.ConnMaxIdleTime,
			PingTimeout:     cfg.LocalDB.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer dbx.Close()

		outboxRepo := repository.NewOutboxRepository(dbx)
		queueSvc := queue.New(dbx, outboxRepo)

		log.Println(">> Seeding demo mutations...")

		ctx := context.Background()
		demo := []struct {
			entityType string
			entityID   string
			op         model.Operation
			payload    map[string]any
		}{
			{model.EntityProduct, "p-1001", model.OpCreate, map[string]any{
				"id": "p-1001", "name": "Tea", "price": 10, "last_updated_by": cfg.Node.Origin,
			}},
			{model.EntityProduct, "p-1002", model.OpCreate, map[string]any{
				"id": "p-1002", "name": "Coffee", "price": 25, "last_updated_by": cfg.Node.Origin,
			}},
			{model.EntityTransaction, "t-5001", model.OpCreate, map[string]any{
				"id": "t-5001", "total": 35, "last_updated_by": cfg.Node.Origin,
			}},
			{model.EntityTransactionItem, "ti-1", model.OpCreate, map[string]any{
				"id": "ti-1", "transaction_id": "t-5001", "product_id": "p-1001", "qty": 1,
				"last_updated_by": cfg.Node.Origin,
			}},
			{model.EntityProduct, "p-1002", model.OpUpdate, map[string]any{
				"price": 22, "last_updated_by": cfg.Node.Origin,
			}},
		}

		for _, d := range demo {
			payload, err := json.Marshal(d.payload)
			if err != nil {
				return fmt.Errorf("marshal payload: %w", err)
			}
			id, err := queueSvc.Enqueue(ctx, d.entityType, d.entityID, d.op, payload)
			if err != nil {
				return fmt.Errorf("enqueue %s %s: %w", d.op, d.entityID, err)
			}
			log.Printf("   %s %s/%s -> %s", d.op, d.entityType, d.entityID, id)
		}

		n, err := outboxRepo.CountPending(ctx)
		if err != nil {
			return err
		}
		log.Printf(">> Seed completed, %d pending", n)
		return nil
	},
}
