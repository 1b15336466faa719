// Package jobStore defines the durable processing-job queue and the
// per-transaction and per-block processing ledgers.
package jobStore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrJobNotOwned         = errors.New("job is not processing or is owned by another worker")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrTransactionNotFound = errors.New("transaction processing record not found")
	ErrBlockNotFound       = errors.New("block processing record not found")
	ErrUnknownJobType      = errors.New("unknown job type")
)

type JobType string

const (
	JobType_Block           JobType = "block"
	JobType_BlockRange      JobType = "block_range"
	JobType_Transactions    JobType = "transactions"
	JobType_ReprocessFailed JobType = "reprocess_failed"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobType_Block, JobType_BlockRange, JobType_Transactions, JobType_ReprocessFailed:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatus_Pending    JobStatus = "pending"
	JobStatus_Processing JobStatus = "processing"
	JobStatus_Complete   JobStatus = "complete"
	JobStatus_Failed     JobStatus = "failed"
)

type TransactionStatus string

const (
	TransactionStatus_Pending    TransactionStatus = "pending"
	TransactionStatus_Processing TransactionStatus = "processing"
	TransactionStatus_Completed  TransactionStatus = "completed"
	TransactionStatus_Failed     TransactionStatus = "failed"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatus_Pending: {TransactionStatus_Processing},
	// processing -> processing is a re-run after the owning job was retried
	TransactionStatus_Processing: {
		TransactionStatus_Processing,
		TransactionStatus_Completed,
		TransactionStatus_Failed,
		TransactionStatus_Pending,
	},
	TransactionStatus_Failed:    {TransactionStatus_Pending},
	TransactionStatus_Completed: {},
}

func CanTransitionTransaction(from TransactionStatus, to TransactionStatus) bool {
	for _, s := range transactionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Timestamps is embedded by every processing record.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProcessingJob struct {
	Id           uint64    `gorm:"primaryKey;autoIncrement"`
	JobType      JobType   `gorm:"type:varchar(32);not null"`
	Status       JobStatus `gorm:"type:varchar(16);not null"`
	Payload      string    `gorm:"type:text"`
	WorkerId     string    `gorm:"type:varchar(64)"`
	Priority     int       `gorm:"not null;default:0"`
	RetryCount   int       `gorm:"not null;default:0"`
	MaxRetries   int       `gorm:"not null;default:3"`
	ErrorMessage string    `gorm:"type:text"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Timestamps
}

func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

type TransactionProcessing struct {
	Id               uint64            `gorm:"primaryKey;autoIncrement"`
	TransactionHash  string            `gorm:"type:varchar(66);uniqueIndex"`
	BlockNumber      uint64            `gorm:"index"`
	TransactionIndex uint64            `gorm:"not null;default:0"`
	Status           TransactionStatus `gorm:"type:varchar(16);not null"`
	RetryCount       int               `gorm:"not null;default:0"`
	LogsProcessed    int               `gorm:"not null;default:0"`
	EventsGenerated  int               `gorm:"not null;default:0"`
	ErrorCount       int               `gorm:"not null;default:0"`
	GasUsed          uint64            `gorm:"not null;default:0"`
	GasPrice         string            `gorm:"type:varchar(78)"`
	LastError        string            `gorm:"type:text"`
	LastProcessedAt  *time.Time
	Timestamps
}

func (TransactionProcessing) TableName() string {
	return "transaction_processing"
}

type BlockProcessing struct {
	BlockNumber      uint64 `gorm:"primaryKey;autoIncrement:false"`
	BlockHash        string `gorm:"type:varchar(66)"`
	BlockTimestamp   uint64
	TransactionCount int    `gorm:"not null;default:0"`
	PendingCount     int    `gorm:"not null;default:0"`
	ProcessingCount  int    `gorm:"not null;default:0"`
	CompletedCount   int    `gorm:"not null;default:0"`
	FailedCount      int    `gorm:"not null;default:0"`
	EventsRoot       string `gorm:"type:varchar(66)"`
	Timestamps
}

func (BlockProcessing) TableName() string {
	return "block_processing"
}

// CountersConsistent reports whether the status counters add up to the transaction count.
func (b *BlockProcessing) CountersConsistent() bool {
	return b.PendingCount+b.ProcessingCount+b.CompletedCount+b.FailedCount == b.TransactionCount
}

func (b *BlockProcessing) IsDone() bool {
	return b.PendingCount == 0 && b.ProcessingCount == 0
}

// TransactionUpdate carries the metrics written with a transaction status change.
type TransactionUpdate struct {
	LogsProcessed   int
	EventsGenerated int
	ErrorCount      int
	GasUsed         uint64
	GasPrice        string
	LastError       string
}

// CountColumn maps a transaction status to its counter on block_processing.
func CountColumn(status TransactionStatus) (string, error) {
	switch status {
	case TransactionStatus_Pending:
		return "pending_count", nil
	case TransactionStatus_Processing:
		return "processing_count", nil
	case TransactionStatus_Completed:
		return "completed_count", nil
	case TransactionStatus_Failed:
		return "failed_count", nil
	}
	return "", fmt.Errorf("unknown transaction status '%s'", status)
}

type JobStore interface {
	CreateJob(job *ProcessingJob) (*ProcessingJob, error)
	GetJob(id uint64) (*ProcessingJob, error)
	ListJobs(status JobStatus, limit int) ([]*ProcessingJob, error)

	// ClaimNext atomically moves the best pending job to processing for
	// workerId. It returns nil without error when no job is pending.
	ClaimNext(ctx context.Context, workerId string) (*ProcessingJob, error)
	CompleteJob(id uint64, workerId string) (*ProcessingJob, error)
	// ReleaseJob returns a job the worker could not finish to pending without
	// consuming a retry.
	ReleaseJob(id uint64, workerId string) (*ProcessingJob, error)
	// FailJob requeues the job while attempts remain, otherwise marks it failed.
	FailJob(id uint64, workerId string, jobErr error) (*ProcessingJob, error)
	// RequeueStaleJobs returns processing jobs started before olderThan to pending.
	RequeueStaleJobs(olderThan time.Time) (int64, error)
	// ResetFailedJobs returns failed jobs to pending with a fresh retry budget.
	ResetFailedJobs(ids []uint64) (int64, error)

	// InitBlock creates the block ledger with every transaction pending. It is
	// a no-op returning the existing record when the block is already known.
	InitBlock(block *BlockProcessing, transactions []*TransactionProcessing) (*BlockProcessing, error)
	GetBlockProcessing(blockNumber uint64) (*BlockProcessing, error)
	GetTransactionProcessing(txHash string) (*TransactionProcessing, error)
	ListTransactionsForBlock(blockNumber uint64) ([]*TransactionProcessing, error)
	ListFailedTransactions(blockNumbers []uint64, txHashes []string) ([]*TransactionProcessing, error)
	// TransitionTransaction moves a transaction and the block counters in one database transaction.
	TransitionTransaction(txHash string, to TransactionStatus, update *TransactionUpdate) (*TransactionProcessing, error)
	// ResetFailedTransactions returns matching failed transactions to pending
	// and reports the affected block numbers.
	ResetFailedTransactions(blockNumbers []uint64, txHashes []string) ([]uint64, error)
	// RequeueFailedTransactions resets matching failed transactions and creates a
	// block job per affected block in one database transaction.
	RequeueFailedTransactions(blockNumbers []uint64, txHashes []string, opts *JobOptions) ([]*ProcessingJob, error)
	SetBlockEventsRoot(blockNumber uint64, root string) error
}
