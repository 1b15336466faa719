package _202502181030_processingTables

import (
	"database/sql"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"gorm.io/gorm"
)

type processingJob struct {
	Id           uint64 `gorm:"primaryKey;autoIncrement"`
	JobType      string `gorm:"type:varchar(32);not null"`
	Status       string `gorm:"type:varchar(16);not null"`
	Payload      string `gorm:"type:text"`
	WorkerId     string `gorm:"type:varchar(64)"`
	Priority     int    `gorm:"not null;default:0"`
	RetryCount   int    `gorm:"not null;default:0"`
	MaxRetries   int    `gorm:"not null;default:3"`
	ErrorMessage string `gorm:"type:text"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (processingJob) TableName() string {
	return "processing_jobs"
}

type transactionProcessing struct {
	Id               uint64 `gorm:"primaryKey;autoIncrement"`
	TransactionHash  string `gorm:"type:varchar(66);uniqueIndex"`
	BlockNumber      uint64 `gorm:"index"`
	TransactionIndex uint64 `gorm:"not null;default:0"`
	Status           string `gorm:"type:varchar(16);not null"`
	RetryCount       int    `gorm:"not null;default:0"`
	LogsProcessed    int    `gorm:"not null;default:0"`
	EventsGenerated  int    `gorm:"not null;default:0"`
	ErrorCount       int    `gorm:"not null;default:0"`
	GasUsed          uint64 `gorm:"not null;default:0"`
	GasPrice         string `gorm:"type:varchar(78)"`
	LastError        string `gorm:"type:text"`
	LastProcessedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (transactionProcessing) TableName() string {
	return "transaction_processing"
}

type blockProcessing struct {
	BlockNumber      uint64 `gorm:"primaryKey;autoIncrement:false"`
	BlockHash        string `gorm:"type:varchar(66)"`
	BlockTimestamp   uint64
	TransactionCount int    `gorm:"not null;default:0"`
	PendingCount     int    `gorm:"not null;default:0"`
	ProcessingCount  int    `gorm:"not null;default:0"`
	CompletedCount   int    `gorm:"not null;default:0"`
	FailedCount      int    `gorm:"not null;default:0"`
	EventsRoot       string `gorm:"type:varchar(66)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (blockProcessing) TableName() string {
	return "block_processing"
}

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	return grm.AutoMigrate(&processingJob{}, &transactionProcessing{}, &blockProcessing{})
}

func (m *Migration) GetName() string {
	return "202502181030_processingTables"
}
