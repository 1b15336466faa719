package migrations

import (
	"database/sql"
	"fmt"
	"time"

	_202502181030_processingTables "github.com/Layr-Labs/sidecar-events/pkg/postgres/migrations/202502181030_processingTables"
	_202502181045_contracts "github.com/Layr-Labs/sidecar-events/pkg/postgres/migrations/202502181045_contracts"
	_202502181100_domainEvents "github.com/Layr-Labs/sidecar-events/pkg/postgres/migrations/202502181100_domainEvents"
	_202502201415_processingIndexes "github.com/Layr-Labs/sidecar-events/pkg/postgres/migrations/202502201415_processingIndexes"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	err := gDb.AutoMigrate(&Migrations{})
	if err != nil {
		l.Sugar().Fatalw("Failed to auto-migrate migrations table", zap.Error(err))
	}
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

func (m *Migrator) MigrateAll() error {
	migrations := []Migration{
		&_202502181030_processingTables.Migration{},
		&_202502181045_contracts.Migration{},
		&_202502181100_domainEvents.Migration{},
		&_202502201415_processingIndexes.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return fmt.Errorf("failed to run migration '%s': %w", migration.GetName(), err)
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	// find migration by name
	var migrationRecord Migrations
	result := m.GDb.Find(&migrationRecord, "name = ?", name).Limit(1)

	if result.Error == nil && result.RowsAffected == 0 {
		m.Logger.Sugar().Infof("Running migration '%s'", name)
		// run migration
		err := migration.Up(m.Db, m.GDb, m.globalConfig)
		if err != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to run migration '%s'", name), zap.Error(err))
			return err
		}

		// record migration
		migrationRecord = Migrations{
			Name: name,
		}
		result = m.GDb.Create(&migrationRecord)
		if result.Error != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to record migration '%s'", name), zap.Error(result.Error))
			return result.Error
		}
	} else if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to find migration '%s'", name), zap.Error(result.Error))
		return result.Error
	} else if result.RowsAffected > 0 {
		m.Logger.Sugar().Debugf("Migration %s already run", name)
		return nil
	}
	return nil
}

type Migrations struct {
	Name      string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"default:current_timestamp"`
	UpdatedAt time.Time `gorm:"default:null"`
}
