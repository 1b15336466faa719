package migrations

import (
	"testing"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/tests"
	"github.com/Layr-Labs/sidecar-events/pkg/sqlite"
	"github.com/stretchr/testify/assert"
)

func Test_Migrator(t *testing.T) {
	l := tests.GetTestLogger()

	t.Run("Should migrate sqlite twice without error", func(t *testing.T) {
		grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(sqlite.NewInMemorySqliteConfig(), l))
		assert.Nil(t, err)
		db, err := grm.DB()
		assert.Nil(t, err)

		migrator := NewMigrator(db, grm, l, &config.Config{})
		assert.Nil(t, migrator.MigrateAll())
		assert.Nil(t, migrator.MigrateAll())

		var records []Migrations
		assert.Nil(t, grm.Order("name asc").Find(&records).Error)
		assert.Len(t, records, 4)
		assert.Equal(t, "202502181030_processingTables", records[0].Name)
		assert.False(t, records[0].CreatedAt.IsZero())
	})
}
