package gormJobStore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/Layr-Labs/sidecar-events/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxClaimAttempts = 5

type GormJobStore struct {
	Db     *gorm.DB
	Logger *zap.Logger
	// DefaultMaxRetries applies to jobs created without an explicit budget.
	DefaultMaxRetries int
}

func NewGormJobStore(db *gorm.DB, maxRetries int, l *zap.Logger) *GormJobStore {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &GormJobStore{
		Db:                db,
		Logger:            l,
		DefaultMaxRetries: maxRetries,
	}
}

func (s *GormJobStore) CreateJob(job *jobStore.ProcessingJob) (*jobStore.ProcessingJob, error) {
	return s.createJob(s.Db, job)
}

func (s *GormJobStore) createJob(db *gorm.DB, job *jobStore.ProcessingJob) (*jobStore.ProcessingJob, error) {
	if !job.JobType.IsValid() {
		return nil, fmt.Errorf("%w: '%s'", jobStore.ErrUnknownJobType, job.JobType)
	}
	job.Id = 0
	job.Status = jobStore.JobStatus_Pending
	job.RetryCount = 0
	job.WorkerId = ""
	if job.MaxRetries < 1 {
		job.MaxRetries = s.DefaultMaxRetries
	}
	res := db.Create(job)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create %s job: %w", job.JobType, res.Error)
	}
	s.Logger.Sugar().Debugw("Created job",
		zap.Uint64("jobId", job.Id),
		zap.String("jobType", string(job.JobType)),
		zap.Int("priority", job.Priority),
	)
	return job, nil
}

func (s *GormJobStore) GetJob(id uint64) (*jobStore.ProcessingJob, error) {
	return getJob(s.Db, id)
}

func getJob(db *gorm.DB, id uint64) (*jobStore.ProcessingJob, error) {
	var job *jobStore.ProcessingJob
	res := db.Model(&jobStore.ProcessingJob{}).Where("id = ?", id).First(&job)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", jobStore.ErrJobNotFound, id)
		}
		return nil, res.Error
	}
	return job, nil
}

func (s *GormJobStore) ListJobs(status jobStore.JobStatus, limit int) ([]*jobStore.ProcessingJob, error) {
	var jobs []*jobStore.ProcessingJob
	query := s.Db.Model(&jobStore.ProcessingJob{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	res := query.Order("priority desc, created_at asc, id asc").Find(&jobs)
	if res.Error != nil {
		return nil, res.Error
	}
	return jobs, nil
}

func (s *GormJobStore) lockClause(db *gorm.DB) *gorm.DB {
	if s.Db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	return db
}

// ClaimNext selects the best pending job and flips it to processing with a
// conditional update. A zero-row update means another worker won the race,
// in which case the next candidate is tried.
func (s *GormJobStore) ClaimNext(ctx context.Context, workerId string) (*jobStore.ProcessingJob, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var claimed *jobStore.ProcessingJob
		var empty bool

		err := s.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var candidates []*jobStore.ProcessingJob
			res := s.lockClause(tx).
				Model(&jobStore.ProcessingJob{}).
				Where("status = ?", jobStore.JobStatus_Pending).
				Order("priority desc, created_at asc, id asc").
				Limit(1).
				Find(&candidates)
			if res.Error != nil {
				return res.Error
			}
			if len(candidates) == 0 {
				empty = true
				return nil
			}
			candidate := candidates[0]
			now := time.Now().UTC()

			res = tx.Model(&jobStore.ProcessingJob{}).
				Where("id = ? AND status = ?", candidate.Id, jobStore.JobStatus_Pending).
				Updates(map[string]interface{}{
					"status":     jobStore.JobStatus_Processing,
					"worker_id":  workerId,
					"started_at": now,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			job, err := getJob(tx, candidate.Id)
			if err != nil {
				return err
			}
			claimed = job
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		if empty {
			return nil, nil
		}
		if claimed != nil {
			s.Logger.Sugar().Debugw("Claimed job",
				zap.Uint64("jobId", claimed.Id),
				zap.String("workerId", workerId),
				zap.String("jobType", string(claimed.JobType)),
			)
			return claimed, nil
		}
		s.Logger.Sugar().Debugw("Lost claim race, retrying", zap.String("workerId", workerId), zap.Int("attempt", attempt))
	}
	return nil, nil
}

func (s *GormJobStore) CompleteJob(id uint64, workerId string) (*jobStore.ProcessingJob, error) {
	var job *jobStore.ProcessingJob
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&jobStore.ProcessingJob{}).
			Where("id = ? AND status = ? AND worker_id = ?", id, jobStore.JobStatus_Processing, workerId).
			Updates(map[string]interface{}{
				"status":        jobStore.JobStatus_Complete,
				"completed_at":  now,
				"error_message": "",
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: job %d, worker %s", jobStore.ErrJobNotOwned, id, workerId)
		}
		var err error
		job, err = getJob(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *GormJobStore) ReleaseJob(id uint64, workerId string) (*jobStore.ProcessingJob, error) {
	var job *jobStore.ProcessingJob
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&jobStore.ProcessingJob{}).
			Where("id = ? AND status = ? AND worker_id = ?", id, jobStore.JobStatus_Processing, workerId).
			Updates(map[string]interface{}{
				"status":     jobStore.JobStatus_Pending,
				"worker_id":  "",
				"started_at": nil,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: job %d, worker %s", jobStore.ErrJobNotOwned, id, workerId)
		}
		var err error
		job, err = getJob(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *GormJobStore) FailJob(id uint64, workerId string, jobErr error) (*jobStore.ProcessingJob, error) {
	message := ""
	if jobErr != nil {
		message = jobErr.Error()
	}
	var job *jobStore.ProcessingJob
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		existing, err := getJob(tx, id)
		if err != nil {
			return err
		}
		if existing.Status != jobStore.JobStatus_Processing || existing.WorkerId != workerId {
			return fmt.Errorf("%w: job %d, worker %s", jobStore.ErrJobNotOwned, id, workerId)
		}

		retryCount := existing.RetryCount + 1
		updates := map[string]interface{}{
			"retry_count":   retryCount,
			"error_message": message,
			"updated_at":    time.Now().UTC(),
		}
		if retryCount >= existing.MaxRetries {
			updates["status"] = jobStore.JobStatus_Failed
			updates["completed_at"] = time.Now().UTC()
		} else {
			updates["status"] = jobStore.JobStatus_Pending
			updates["worker_id"] = ""
			updates["started_at"] = nil
		}
		res := tx.Model(&jobStore.ProcessingJob{}).
			Where("id = ? AND status = ? AND worker_id = ?", id, jobStore.JobStatus_Processing, workerId).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: job %d, worker %s", jobStore.ErrJobNotOwned, id, workerId)
		}
		job, err = getJob(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if job.Status == jobStore.JobStatus_Failed {
		s.Logger.Sugar().Warnw("Job exhausted retries",
			zap.Uint64("jobId", id),
			zap.Int("retryCount", job.RetryCount),
			zap.String("error", message),
		)
	}
	return job, nil
}

func (s *GormJobStore) RequeueStaleJobs(olderThan time.Time) (int64, error) {
	res := s.Db.Model(&jobStore.ProcessingJob{}).
		Where("status = ? AND started_at < ?", jobStore.JobStatus_Processing, olderThan.UTC()).
		Updates(map[string]interface{}{
			"status":     jobStore.JobStatus_Pending,
			"worker_id":  "",
			"started_at": nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.Logger.Sugar().Infow("Requeued stale jobs", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *GormJobStore) ResetFailedJobs(ids []uint64) (int64, error) {
	query := s.Db.Model(&jobStore.ProcessingJob{}).Where("status = ?", jobStore.JobStatus_Failed)
	if len(ids) > 0 {
		query = query.Where("id in ?", ids)
	}
	res := query.Updates(map[string]interface{}{
		"status":        jobStore.JobStatus_Pending,
		"retry_count":   0,
		"worker_id":     "",
		"error_message": "",
		"started_at":    nil,
		"completed_at":  nil,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset failed jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormJobStore) InitBlock(block *jobStore.BlockProcessing, transactions []*jobStore.TransactionProcessing) (*jobStore.BlockProcessing, error) {
	var result *jobStore.BlockProcessing
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		var existing []*jobStore.BlockProcessing
		res := tx.Model(&jobStore.BlockProcessing{}).Where("block_number = ?", block.BlockNumber).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if len(existing) > 0 {
			result = existing[0]
			return nil
		}

		block.BlockHash = strings.ToLower(block.BlockHash)
		block.TransactionCount = len(transactions)
		block.PendingCount = len(transactions)
		block.ProcessingCount = 0
		block.CompletedCount = 0
		block.FailedCount = 0
		if res := tx.Create(block); res.Error != nil {
			return res.Error
		}

		if len(transactions) > 0 {
			for _, t := range transactions {
				t.TransactionHash = strings.ToLower(t.TransactionHash)
				t.BlockNumber = block.BlockNumber
				t.Status = jobStore.TransactionStatus_Pending
			}
			if res := tx.Create(&transactions); res.Error != nil {
				return res.Error
			}
		}
		result = block
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize block %d: %w", block.BlockNumber, err)
	}
	return result, nil
}

func (s *GormJobStore) GetBlockProcessing(blockNumber uint64) (*jobStore.BlockProcessing, error) {
	return getBlockProcessing(s.Db, blockNumber)
}

func getBlockProcessing(db *gorm.DB, blockNumber uint64) (*jobStore.BlockProcessing, error) {
	var block *jobStore.BlockProcessing
	res := db.Model(&jobStore.BlockProcessing{}).Where("block_number = ?", blockNumber).First(&block)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", jobStore.ErrBlockNotFound, blockNumber)
		}
		return nil, res.Error
	}
	return block, nil
}

func (s *GormJobStore) GetTransactionProcessing(txHash string) (*jobStore.TransactionProcessing, error) {
	return getTransactionProcessing(s.Db, txHash)
}

func getTransactionProcessing(db *gorm.DB, txHash string) (*jobStore.TransactionProcessing, error) {
	var t *jobStore.TransactionProcessing
	res := db.Model(&jobStore.TransactionProcessing{}).Where("transaction_hash = ?", strings.ToLower(txHash)).First(&t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", jobStore.ErrTransactionNotFound, txHash)
		}
		return nil, res.Error
	}
	return t, nil
}

func (s *GormJobStore) ListTransactionsForBlock(blockNumber uint64) ([]*jobStore.TransactionProcessing, error) {
	var txs []*jobStore.TransactionProcessing
	res := s.Db.Model(&jobStore.TransactionProcessing{}).
		Where("block_number = ?", blockNumber).
		Order("transaction_index asc").
		Find(&txs)
	if res.Error != nil {
		return nil, res.Error
	}
	return txs, nil
}

func failedTransactionsQuery(db *gorm.DB, blockNumbers []uint64, txHashes []string) *gorm.DB {
	query := db.Model(&jobStore.TransactionProcessing{}).Where("status = ?", jobStore.TransactionStatus_Failed)
	if len(blockNumbers) > 0 && len(txHashes) > 0 {
		query = query.Where("block_number in ? OR transaction_hash in ?", blockNumbers, utils.LowercaseAll(txHashes))
	} else if len(blockNumbers) > 0 {
		query = query.Where("block_number in ?", blockNumbers)
	} else if len(txHashes) > 0 {
		query = query.Where("transaction_hash in ?", utils.LowercaseAll(txHashes))
	}
	return query
}

func (s *GormJobStore) ListFailedTransactions(blockNumbers []uint64, txHashes []string) ([]*jobStore.TransactionProcessing, error) {
	var txs []*jobStore.TransactionProcessing
	res := failedTransactionsQuery(s.Db, blockNumbers, txHashes).
		Order("block_number asc, transaction_index asc").
		Find(&txs)
	if res.Error != nil {
		return nil, res.Error
	}
	return txs, nil
}

func (s *GormJobStore) TransitionTransaction(
	txHash string,
	to jobStore.TransactionStatus,
	update *jobStore.TransactionUpdate,
) (*jobStore.TransactionProcessing, error) {
	var result *jobStore.TransactionProcessing
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		t, err := getTransactionProcessing(tx, txHash)
		if err != nil {
			return err
		}
		t, err = transition(tx, t, to, update)
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transition must run inside a database transaction so the block counters
// move together with the transaction status.
func transition(
	tx *gorm.DB,
	t *jobStore.TransactionProcessing,
	to jobStore.TransactionStatus,
	update *jobStore.TransactionUpdate,
) (*jobStore.TransactionProcessing, error) {
	from := t.Status
	if !jobStore.CanTransitionTransaction(from, to) {
		return nil, fmt.Errorf("%w: transaction %s from '%s' to '%s'", jobStore.ErrInvalidTransition, t.TransactionHash, from, to)
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":            to,
		"last_processed_at": now,
		"updated_at":        now,
	}
	if from == jobStore.TransactionStatus_Failed && to == jobStore.TransactionStatus_Pending {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	if update != nil {
		updates["logs_processed"] = update.LogsProcessed
		updates["events_generated"] = update.EventsGenerated
		updates["error_count"] = update.ErrorCount
		updates["gas_used"] = update.GasUsed
		updates["gas_price"] = update.GasPrice
		updates["last_error"] = update.LastError
	}
	res := tx.Model(&jobStore.TransactionProcessing{}).
		Where("id = ? AND status = ?", t.Id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: transaction %s changed concurrently", jobStore.ErrInvalidTransition, t.TransactionHash)
	}

	if from != to {
		fromColumn, err := jobStore.CountColumn(from)
		if err != nil {
			return nil, err
		}
		toColumn, err := jobStore.CountColumn(to)
		if err != nil {
			return nil, err
		}
		res = tx.Model(&jobStore.BlockProcessing{}).
			Where("block_number = ?", t.BlockNumber).
			Updates(map[string]interface{}{
				fromColumn:   gorm.Expr(fmt.Sprintf("%s - 1", fromColumn)),
				toColumn:     gorm.Expr(fmt.Sprintf("%s + 1", toColumn)),
				"updated_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("%w: %d", jobStore.ErrBlockNotFound, t.BlockNumber)
		}
	}
	return getTransactionProcessing(tx, t.TransactionHash)
}

func (s *GormJobStore) ResetFailedTransactions(blockNumbers []uint64, txHashes []string) ([]uint64, error) {
	var blocks []uint64
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		var err error
		blocks, err = resetFailedTransactions(tx, blockNumbers, txHashes)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset failed transactions: %w", err)
	}
	return blocks, nil
}

func (s *GormJobStore) RequeueFailedTransactions(blockNumbers []uint64, txHashes []string, opts *jobStore.JobOptions) ([]*jobStore.ProcessingJob, error) {
	jobs := make([]*jobStore.ProcessingJob, 0)
	err := s.Db.Transaction(func(tx *gorm.DB) error {
		blocks, err := resetFailedTransactions(tx, blockNumbers, txHashes)
		if err != nil {
			return err
		}
		for _, n := range blocks {
			job, err := jobStore.NewBlockJob(n, opts)
			if err != nil {
				return err
			}
			created, err := s.createJob(tx, job)
			if err != nil {
				return err
			}
			jobs = append(jobs, created)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to requeue failed transactions: %w", err)
	}
	return jobs, nil
}

// resetFailedTransactions returns the affected blocks in ascending order.
func resetFailedTransactions(tx *gorm.DB, blockNumbers []uint64, txHashes []string) ([]uint64, error) {
	blocks := make([]uint64, 0)
	var failed []*jobStore.TransactionProcessing
	res := failedTransactionsQuery(tx, blockNumbers, txHashes).
		Order("block_number asc, transaction_index asc").
		Find(&failed)
	if res.Error != nil {
		return nil, res.Error
	}
	seen := make(map[uint64]bool)
	for _, t := range failed {
		if _, err := transition(tx, t, jobStore.TransactionStatus_Pending, nil); err != nil {
			return nil, err
		}
		if !seen[t.BlockNumber] {
			seen[t.BlockNumber] = true
			blocks = append(blocks, t.BlockNumber)
		}
	}
	return blocks, nil
}

func (s *GormJobStore) SetBlockEventsRoot(blockNumber uint64, root string) error {
	res := s.Db.Model(&jobStore.BlockProcessing{}).
		Where("block_number = ?", blockNumber).
		Updates(map[string]interface{}{
			"events_root": root,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", jobStore.ErrBlockNotFound, blockNumber)
	}
	return nil
}
