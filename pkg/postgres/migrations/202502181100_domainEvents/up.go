package _202502181100_domainEvents

import (
	"database/sql"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"gorm.io/gorm"
)

type domainEvent struct {
	ContentId      string `gorm:"primaryKey;type:varchar(66)"`
	Kind           string `gorm:"type:varchar(32);not null"`
	TxHash         string `gorm:"type:varchar(66);not null"`
	BlockNumber    uint64 `gorm:"not null"`
	LogIndex       uint64 `gorm:"not null"`
	BlockTimestamp uint64
	PrimaryAmount  string `gorm:"type:varchar(78)"`
	ParentId       string `gorm:"type:varchar(66)"`
	Payload        string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (domainEvent) TableName() string {
	return "domain_events"
}

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	return grm.AutoMigrate(&domainEvent{})
}

func (m *Migration) GetName() string {
	return "202502181100_domainEvents"
}
