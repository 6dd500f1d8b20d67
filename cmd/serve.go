package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jmehdipour/pos-sync/internal/config"
	"github.com/jmehdipour/pos-sync/internal/connectivity"
	"github.com/jmehdipour/pos-sync/internal/db"
	httpSrv "github.com/jmehdipour/pos-sync/internal/http"
	"github.com/jmehdipour/pos-sync/internal/logger"
	"github.com/jmehdipour/pos-sync/internal/metrics"
	"github.com/jmehdipour/pos-sync/internal/model"
	"github.com/jmehdipour/pos-sync/internal/realtime"
	"github.com/jmehdipour/pos-sync/internal/remote"
	"github.com/jmehdipour/pos-sync/internal/repository"
	"github.com/jmehdipour/pos-sync/internal/scheduler"
	"github.com/jmehdipour/pos-sync/internal/service/queue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine and its admin HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

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
		queueSvc := queue.New(dbx, outboxRepo)

		client, err := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.BearerToken, cfg.Remote.Timeout)
		if err != nil {
			return fmt.Errorf("remote client: %w", err)
		}

		monitor := connectivity.NewMonitor(cfg.Remote.BaseURL+cfg.Remote.ProbePath, cfg.Remote.APIKey, cfg.Sync.ProbeTimeout)

		sched := scheduler.New(outboxRepo, client, monitor, scheduler.Options{
			Interval:     cfg.Sync.Interval,
			InitialDelay: cfg.Sync.InitialDelay,
		})
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Realtime.Enabled && cfg.Realtime.URL != "" {
			filter := realtime.NewFilter(cfg.Node.Origin)
			// applying remote changes is the embedding POS app's job; the
			// standalone binary only logs what survived the filter
			listener := realtime.NewListener(cfg.Realtime.URL, filter,
				func(ctx context.Context, n model.ChangeNotification) error {
					log.Printf("remote change: %s %s id=%s", n.Operation, n.EntityType, n.EntityID)
					return nil
				},
				cfg.Realtime.Reconnect,
			)
			go func() { _ = listener.Run(ctx) }()
		}

		server := httpSrv.NewServer(cfg, queueSvc, sched)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("starting http on %s", cfg.HTTP.Addr)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		select {
		case <-ctx.Done():
			log.Printf("signal received, shutting down...")
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}
