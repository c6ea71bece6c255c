package cmd

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/identity-access/db/migrations"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "run the embedded sql migrations against postgres",
	}
	migrateRollback bool
	migrateStatus   bool
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "rollback the latest applied migration")
	migrateCmd.Flags().BoolVarP(&migrateStatus, "status", "s", false, "print the migration status and exit")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrate only supports postgres; %s creates its schema on startup", cfg.Database.Driver)
	}
	log := logger.LoggerWrapper()

	db, err := goose.OpenDBWithDriver(pgxDriver, cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("goose: failed to open DB: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch {
	case migrateStatus:
		return goose.StatusContext(ctx, db, ".")
	case migrateRollback:
		if err := goose.DownContext(ctx, db, "."); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		log.Info("rolled back latest migration")
	default:
		if err := goose.UpContext(ctx, db, "."); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		log.Info("migrations applied")
	}
	return nil
}
