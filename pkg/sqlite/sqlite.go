package sqlite

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const SqliteInMemoryPath = ":memory:"

type SqliteConfig struct {
	Path string
}

// NewInMemorySqliteConfig returns a uniquely named shared-cache in-memory
// database so every connection in the pool sees the same data.
func NewInMemorySqliteConfig() *SqliteConfig {
	return &SqliteConfig{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
}

func NewSqlite(cfg *SqliteConfig, l *zap.Logger) gorm.Dialector {
	path := cfg.Path
	if path == SqliteInMemoryPath {
		path = NewInMemorySqliteConfig().Path
	}
	l.Sugar().Debugw("Opening sqlite database", zap.String("path", path))
	return sqlite.Open(path)
}

func NewGormSqliteFromSqlite(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// single writer
	sqlDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDb.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
	}

	for _, pragma := range pragmas {
		res := db.Exec(pragma)
		if res.Error != nil {
			return nil, res.Error
		}
	}
	return db, nil
}
