package _202502181045_contracts

import (
	"database/sql"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"gorm.io/gorm"
)

type contract struct {
	ContractAddress       string `gorm:"primaryKey;type:varchar(42)"`
	ContractAbi           string `gorm:"type:text"`
	ImplementationAddress string `gorm:"type:varchar(42)"`
	TransformerRole       string `gorm:"type:varchar(32)"`
	Token0                string `gorm:"type:varchar(42)"`
	Token1                string `gorm:"type:varchar(42)"`
	RewardToken           string `gorm:"type:varchar(42)"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (contract) TableName() string {
	return "contracts"
}

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	return grm.AutoMigrate(&contract{})
}

func (m *Migration) GetName() string {
	return "202502181045_contracts"
}
