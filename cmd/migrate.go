package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/pos-sync/internal/config"
	"github.com/jmehdipour/pos-sync/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE the outbox table)",
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

		sqlPath := filepath.Join("migrations", "001_init.sql")
		sqlBytes, err := os.ReadFile(sqlPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", sqlPath, err)
		}

		// exec statement by statement so mysql works without multiStatements
		for _, stmt := range strings.Split(string(sqlBytes), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := dbx.Exec(stmt); err != nil {
				return fmt.Errorf("exec migration: %w", err)
			}
		}

		fmt.Println(">> Migration complete")
		return nil
	},
}
