package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/pos-sync/internal/config"
	"github.com/jmehdipour/pos-sync/internal/connectivity"
	"github.com/jmehdipour/pos-sync/internal/db"
	"github.com/jmehdipour/pos-sync/internal/logger"
	"github.com/jmehdipour/pos-sync/internal/remote"
	"github.com/jmehdipour/pos-sync/internal/repository"
	"github.com/jmehdipour/pos-sync/internal/scheduler"
)

// syncCmd is the operator's one-shot drain: probe once, drain once, print the
// status event. No timer, no HTTP server.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one drain cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

		if cfg.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required")
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
			return fmt.Errorf("open local db: %w", err)
		}
		defer dbx.Close()

		outboxRepo := repository.NewOutboxRepository(dbx)

		client, err := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.BearerToken, cfg.Remote.Timeout)
		if err != nil {
			return fmt.Errorf("remote client: %w", err)
		}

		monitor := connectivity.NewMonitor(cfg.Remote.BaseURL+cfg.Remote.ProbePath, cfg.Remote.APIKey, cfg.Sync.ProbeTimeout)

		sched := scheduler.New(outboxRepo, client, monitor, scheduler.Options{})
		defer sched.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		ev, err := sched.SyncNow(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		out, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Println(string(out))

		return nil
	},
}
