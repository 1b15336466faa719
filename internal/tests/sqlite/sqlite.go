package sqlite

import (
	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/postgres/migrations"
	sqlite2 "github.com/Layr-Labs/sidecar-events/pkg/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func GetInMemorySqliteDatabaseConnection(l *zap.Logger) (*gorm.DB, error) {
	return sqlite2.NewGormSqliteFromSqlite(sqlite2.NewSqlite(sqlite2.NewInMemorySqliteConfig(), l))
}

// GetMigratedInMemoryDatabase returns a fresh, isolated in-memory database with every migration applied.
func GetMigratedInMemoryDatabase(l *zap.Logger) (*gorm.DB, error) {
	grm, err := GetInMemorySqliteDatabaseConnection(l)
	if err != nil {
		return nil, err
	}
	db, err := grm.DB()
	if err != nil {
		return nil, err
	}
	migrator := migrations.NewMigrator(db, grm, l, &config.Config{})
	if err := migrator.MigrateAll(); err != nil {
		return nil, err
	}
	return grm, nil
}
