package postgres

import (
	"database/sql"
	"fmt"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/postgres/migrations"
	"github.com/Layr-Labs/sidecar-events/pkg/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewDatabaseFromConfig opens the configured backend and returns both the
// raw handle and the gorm handle over the same connection pool.
func NewDatabaseFromConfig(cfg *config.Config, l *zap.Logger) (*sql.DB, *gorm.DB, error) {
	switch cfg.DatabaseConfig.Type {
	case config.DatabaseType_Postgres:
		pgConfig := PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true
		pgConfig.MaxOpenConns = cfg.WorkerConfig.Count * 2
		pg, err := NewPostgres(pgConfig)
		if err != nil {
			return nil, nil, err
		}
		grm, err := NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			return nil, nil, err
		}
		return pg.Db, grm, nil
	case config.DatabaseType_Sqlite:
		grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(&sqlite.SqliteConfig{
			Path: cfg.DatabaseConfig.SqlitePath,
		}, l))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		db, err := grm.DB()
		if err != nil {
			return nil, nil, err
		}
		return db, grm, nil
	}
	return nil, nil, fmt.Errorf("unsupported database type '%s'", cfg.DatabaseConfig.Type)
}

// NewMigratedDatabaseFromConfig opens the database and runs every pending migration.
func NewMigratedDatabaseFromConfig(cfg *config.Config, l *zap.Logger) (*sql.DB, *gorm.DB, error) {
	db, grm, err := NewDatabaseFromConfig(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	migrator := migrations.NewMigrator(db, grm, l, cfg)
	if err := migrator.MigrateAll(); err != nil {
		return nil, nil, err
	}
	return db, grm, nil
}
