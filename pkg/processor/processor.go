// Package processor executes processing jobs: it fetches and decodes blocks,
// transforms their transactions and records the outcome on the job ledgers.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/metrics"
	"github.com/Layr-Labs/sidecar-events/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/decoder"
	"github.com/Layr-Labs/sidecar-events/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/eventStore"
	"github.com/Layr-Labs/sidecar-events/pkg/fetcher"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/Layr-Labs/sidecar-events/pkg/transformEngine"
	"go.uber.org/zap"
)

type Processor struct {
	blockSource  fetcher.BlockSource
	blockDecoder *decoder.BlockDecoder
	engine       *transformEngine.Engine
	jobStore     jobStore.JobStore
	eventStore   eventStore.EventStore
	eventBus     eventBusTypes.IEventBus
	metricsSink  *metrics.MetricsSink
	globalConfig *config.Config
	logger       *zap.Logger
}

func NewProcessor(
	bs fetcher.BlockSource,
	bd *decoder.BlockDecoder,
	e *transformEngine.Engine,
	js jobStore.JobStore,
	es eventStore.EventStore,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
	gc *config.Config,
	l *zap.Logger,
) *Processor {
	return &Processor{
		blockSource:  bs,
		blockDecoder: bd,
		engine:       e,
		jobStore:     js,
		eventStore:   es,
		eventBus:     eb,
		metricsSink:  ms,
		globalConfig: gc,
		logger:       l,
	}
}

// BlockResult summarizes one pass over a block.
type BlockResult struct {
	BlockNumber uint64
	Processed   int
	Completed   int
	Failed      int
	// Skipped transactions were already completed or failed.
	Skipped    int
	Events     int
	Inserted   int64
	EventsRoot string
}

type runOptions struct {
	// only these transactions are processed when set
	txHashes []string
	// persist failures mark the transaction failed instead of pending
	finalAttempt bool
}

// ProcessJob runs a claimed job. A returned error means the job should be
// retried according to its retry policy.
func (p *Processor) ProcessJob(ctx context.Context, job *jobStore.ProcessingJob) error {
	payload, err := jobStore.DecodePayload(job)
	if err != nil {
		return err
	}
	opts := &runOptions{finalAttempt: job.RetryCount+1 >= job.MaxRetries}

	p.logger.Sugar().Debugw("Processing job",
		zap.Uint64("jobId", job.Id),
		zap.String("jobType", string(job.JobType)),
		zap.Int("retryCount", job.RetryCount),
	)

	switch pl := payload.(type) {
	case *jobStore.BlockJobPayload:
		_, err = p.processBlock(ctx, pl.BlockNumber, opts)
	case *jobStore.BlockRangeJobPayload:
		_, err = p.processBlockRange(ctx, pl.StartBlock, pl.EndBlock, opts, nil)
	case *jobStore.TransactionsJobPayload:
		opts.txHashes = pl.TransactionHashes
		_, err = p.processBlock(ctx, pl.BlockNumber, opts)
	case *jobStore.ReprocessFailedJobPayload:
		_, err = p.ReprocessFailed(pl)
	default:
		err = fmt.Errorf("%w: %T", jobStore.ErrUnknownJobType, payload)
	}
	return err
}

// ProcessBlock processes every transaction of a block outside of any job.
func (p *Processor) ProcessBlock(ctx context.Context, blockNumber uint64) (*BlockResult, error) {
	return p.processBlock(ctx, blockNumber, &runOptions{finalAttempt: true})
}

// ProcessBlockRange processes blocks in order, stopping at the first error.
// onBlock is called after every block.
func (p *Processor) ProcessBlockRange(ctx context.Context, start uint64, end uint64, onBlock func(*BlockResult)) ([]*BlockResult, error) {
	return p.processBlockRange(ctx, start, end, &runOptions{finalAttempt: true}, onBlock)
}

func (p *Processor) processBlockRange(ctx context.Context, start uint64, end uint64, opts *runOptions, onBlock func(*BlockResult)) ([]*BlockResult, error) {
	if end < start {
		return nil, fmt.Errorf("invalid block range %d-%d", start, end)
	}
	results := make([]*BlockResult, 0, end-start+1)
	for n := start; n <= end; n++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := p.processBlock(ctx, n, opts)
		if err != nil {
			return results, fmt.Errorf("block range %d-%d stopped at block %d: %w", start, end, n, err)
		}
		results = append(results, result)
		if onBlock != nil {
			onBlock(result)
		}
	}
	return results, nil
}

func (p *Processor) processBlock(ctx context.Context, blockNumber uint64, opts *runOptions) (*BlockResult, error) {
	startTime := time.Now()

	raw, err := p.blockSource.FetchBlock(ctx, blockNumber)
	if err != nil {
		p.logger.Sugar().Errorw("Failed to fetch block", zap.Uint64("blockNumber", blockNumber), zap.Error(err))
		return nil, err
	}

	var block *parser.Block
	if len(opts.txHashes) > 0 {
		block, err = p.blockDecoder.DecodeTransactions(raw, opts.txHashes)
	} else {
		block, err = p.blockDecoder.DecodeBlock(raw)
	}
	if err != nil {
		var integrityErr *decoder.SourceIntegrityError
		if errors.As(err, &integrityErr) {
			p.logger.Sugar().Errorw("Block source returned inconsistent data",
				zap.Uint64("blockNumber", blockNumber),
				zap.Error(err),
			)
		}
		return nil, err
	}

	if _, err := p.initBlock(raw); err != nil {
		return nil, err
	}

	result := &BlockResult{BlockNumber: blockNumber}
	for _, tx := range block.Transactions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.processTransaction(tx, opts, result); err != nil {
			return result, err
		}
	}

	root, err := p.updateEventsRoot(blockNumber)
	if err != nil {
		return result, err
	}
	result.EventsRoot = root

	record, err := p.jobStore.GetBlockProcessing(blockNumber)
	if err != nil {
		return result, err
	}
	p.eventBus.Publish(&eventBusTypes.Event{
		Name: eventBusTypes.Event_BlockProcessed,
		Data: &eventBusTypes.BlockProcessedData{
			BlockNumber: blockNumber,
			BlockHash:   block.Hash,
			EventsRoot:  root,
			Block:       record,
		},
	})

	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_BlockProcessed, nil, 1)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_LastProcessedBlock, float64(blockNumber), nil)
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_BlockDuration, time.Since(startTime), nil)

	p.logger.Sugar().Infow("Processed block",
		zap.Uint64("blockNumber", blockNumber),
		zap.Int("processed", result.Processed),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("events", result.Events),
		zap.String("eventsRoot", root),
		zap.Int64("duration", time.Since(startTime).Milliseconds()),
	)
	return result, nil
}

// initBlock records every transaction of the block, even when only a subset
// is processed, so the block counters cover the whole block.
func (p *Processor) initBlock(raw *fetcher.FetchedBlock) (*jobStore.BlockProcessing, error) {
	txs := make([]*jobStore.TransactionProcessing, 0, len(raw.Block.Transactions))
	for _, tx := range raw.Block.Transactions {
		txs = append(txs, &jobStore.TransactionProcessing{
			TransactionHash:  tx.Hash.Value(),
			TransactionIndex: tx.Index.Value(),
		})
	}
	return p.jobStore.InitBlock(&jobStore.BlockProcessing{
		BlockNumber:    raw.Block.Number.Value(),
		BlockHash:      raw.Block.Hash.Value(),
		BlockTimestamp: raw.Block.Timestamp.Value(),
	}, txs)
}

// ReprocessFailed resets failed transactions and jobs and enqueues a block
// job for every block with a reset transaction. It returns the new jobs.
func (p *Processor) ReprocessFailed(payload *jobStore.ReprocessFailedJobPayload) ([]*jobStore.ProcessingJob, error) {
	if len(payload.JobIds) > 0 {
		count, err := p.jobStore.ResetFailedJobs(payload.JobIds)
		if err != nil {
			return nil, err
		}
		p.logger.Sugar().Infow("Reset failed jobs", zap.Int64("count", count))
	}

	if len(payload.BlockNumbers) == 0 && len(payload.TransactionHashes) == 0 {
		return make([]*jobStore.ProcessingJob, 0), nil
	}

	jobs, err := p.jobStore.RequeueFailedTransactions(payload.BlockNumbers, payload.TransactionHashes, &jobStore.JobOptions{
		Priority:   p.globalConfig.WorkerConfig.DefaultPriority,
		MaxRetries: p.globalConfig.WorkerConfig.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	blocks := make([]uint64, 0, len(jobs))
	for _, job := range jobs {
		if pl, err := jobStore.DecodePayload(job); err == nil {
			if b, ok := pl.(*jobStore.BlockJobPayload); ok {
				blocks = append(blocks, b.BlockNumber)
			}
		}
	}
	p.logger.Sugar().Infow("Enqueued blocks for reprocessing",
		zap.Int("blocks", len(blocks)),
		zap.Uint64s("blockNumbers", blocks),
	)
	return jobs, nil
}
