package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/identity-access/internal"
	authDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/auth"
	identityDatamodel "github.com/frahmantamala/identity-access/internal/core/datamodel/identity"
)

const pgxDriver = "pgx"

// openDatabase returns the gorm handle used by the repositories together with
// the *sql.DB underneath it for health checks and shutdown. The sqlite driver
// creates its schema with AutoMigrate; postgres relies on goose migrations.
func openDatabase(ctx context.Context, cfg internal.DatabaseConfig) (*gorm.DB, *sql.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch cfg.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Source), gormCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		// sqlite serialises writers
		sqlDB.SetMaxOpenConns(1)
		models := append(identityDatamodel.All(), authDatamodel.All()...)
		if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
		return db, sqlDB, nil
	default:
		conn, err := initDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn.DB}), gormCfg)
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open gorm over pgx: %w", err)
		}
		return db, conn.DB, nil
	}
}

func initDB(ctx context.Context, cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Open(pgxDriver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}
