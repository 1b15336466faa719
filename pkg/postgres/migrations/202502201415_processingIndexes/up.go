package _202502201415_processingIndexes

import (
	"database/sql"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create index if not exists idx_processing_jobs_claim on processing_jobs (status, priority desc, created_at, id)`,
		`create index if not exists idx_processing_jobs_started_at on processing_jobs (status, started_at)`,
		`create index if not exists idx_transaction_processing_block_status on transaction_processing (block_number, status)`,
		`create index if not exists idx_domain_events_tx_hash on domain_events (tx_hash)`,
		`create index if not exists idx_domain_events_block_number on domain_events (block_number)`,
		`create index if not exists idx_domain_events_kind on domain_events (kind)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202502201415_processingIndexes"
}
