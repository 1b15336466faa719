package jobStore

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/sidecar-events/pkg/utils"
)

type BlockJobPayload struct {
	BlockNumber uint64 `json:"blockNumber"`
}

type BlockRangeJobPayload struct {
	StartBlock uint64 `json:"startBlock"`
	EndBlock   uint64 `json:"endBlock"`
}

type TransactionsJobPayload struct {
	BlockNumber       uint64   `json:"blockNumber"`
	TransactionHashes []string `json:"transactionHashes"`
}

type ReprocessFailedJobPayload struct {
	BlockNumbers      []uint64 `json:"blockNumbers,omitempty"`
	TransactionHashes []string `json:"transactionHashes,omitempty"`
	JobIds            []uint64 `json:"jobIds,omitempty"`
}

type JobOptions struct {
	Priority   int
	MaxRetries int
}

func newJob(jobType JobType, payload interface{}, opts *JobOptions) (*ProcessingJob, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}
	if opts == nil {
		opts = &JobOptions{}
	}
	return &ProcessingJob{
		JobType:    jobType,
		Status:     JobStatus_Pending,
		Payload:    string(data),
		Priority:   opts.Priority,
		MaxRetries: opts.MaxRetries,
	}, nil
}

func NewBlockJob(blockNumber uint64, opts *JobOptions) (*ProcessingJob, error) {
	return newJob(JobType_Block, &BlockJobPayload{BlockNumber: blockNumber}, opts)
}

func NewBlockRangeJob(startBlock uint64, endBlock uint64, opts *JobOptions) (*ProcessingJob, error) {
	if endBlock < startBlock {
		return nil, fmt.Errorf("end block %d is before start block %d", endBlock, startBlock)
	}
	return newJob(JobType_BlockRange, &BlockRangeJobPayload{StartBlock: startBlock, EndBlock: endBlock}, opts)
}

func NewTransactionsJob(blockNumber uint64, txHashes []string, opts *JobOptions) (*ProcessingJob, error) {
	if len(txHashes) == 0 {
		return nil, fmt.Errorf("transactions job for block %d has no transaction hashes", blockNumber)
	}
	return newJob(JobType_Transactions, &TransactionsJobPayload{BlockNumber: blockNumber, TransactionHashes: utils.LowercaseAll(txHashes)}, opts)
}

func NewReprocessFailedJob(payload *ReprocessFailedJobPayload, opts *JobOptions) (*ProcessingJob, error) {
	if len(payload.BlockNumbers) == 0 && len(payload.TransactionHashes) == 0 && len(payload.JobIds) == 0 {
		return nil, fmt.Errorf("reprocess job needs at least one block number, transaction hash or job id")
	}
	p := *payload
	p.TransactionHashes = utils.LowercaseAll(payload.TransactionHashes)
	return newJob(JobType_ReprocessFailed, &p, opts)
}

// DecodePayload unmarshals the job payload into the type matching its job type.
func DecodePayload(job *ProcessingJob) (interface{}, error) {
	var target interface{}
	switch job.JobType {
	case JobType_Block:
		target = &BlockJobPayload{}
	case JobType_BlockRange:
		target = &BlockRangeJobPayload{}
	case JobType_Transactions:
		target = &TransactionsJobPayload{}
	case JobType_ReprocessFailed:
		target = &ReprocessFailedJobPayload{}
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownJobType, job.JobType)
	}
	if err := json.Unmarshal([]byte(job.Payload), target); err != nil {
		return nil, fmt.Errorf("failed to decode payload of job %d: %w", job.Id, err)
	}
	return target, nil
}
