package processor

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/sidecar-events/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"go.uber.org/zap"
)

// processTransaction drives one transaction through its ledger states. Only
// persist failures are returned; everything else is recorded on the ledger.
func (p *Processor) processTransaction(tx *parser.Transaction, opts *runOptions, result *BlockResult) error {
	record, err := p.jobStore.GetTransactionProcessing(tx.Hash)
	if err != nil {
		return err
	}
	switch record.Status {
	case jobStore.TransactionStatus_Completed, jobStore.TransactionStatus_Failed:
		// failed transactions wait for a reprocess job
		result.Skipped++
		return nil
	}

	if _, err := p.jobStore.TransitionTransaction(tx.Hash, jobStore.TransactionStatus_Processing, nil); err != nil {
		return err
	}
	result.Processed++

	if tx.DecodeFailed {
		return p.finishTransaction(tx, jobStore.TransactionStatus_Failed, 0, result)
	}

	p.engine.Transform(tx)

	inserted, err := p.eventStore.UpsertEvents(tx.Events)
	if err != nil {
		perr := domainEvents.NewProcessingError(
			domainEvents.ProcessingStage_Persist,
			domainEvents.ProcessingError_PersistFailed,
			err,
		).WithContext("events", len(tx.Events))
		tx.AddError(perr)

		status := jobStore.TransactionStatus_Pending
		if opts.finalAttempt {
			status = jobStore.TransactionStatus_Failed
		}
		if ferr := p.finishTransaction(tx, status, 0, result); ferr != nil {
			return errors.Join(perr, ferr)
		}
		return fmt.Errorf("failed to persist events for transaction %s: %w", tx.Hash, perr)
	}
	return p.finishTransaction(tx, jobStore.TransactionStatus_Completed, inserted, result)
}

func (p *Processor) finishTransaction(tx *parser.Transaction, status jobStore.TransactionStatus, inserted int64, result *BlockResult) error {
	update := &jobStore.TransactionUpdate{
		LogsProcessed:   tx.Logs.Len(),
		EventsGenerated: len(tx.Events),
		ErrorCount:      len(tx.Errors),
		GasUsed:         tx.GasUsed,
	}
	if tx.GasPrice != nil {
		update.GasPrice = tx.GasPrice.String()
	}
	if len(tx.Errors) > 0 {
		update.LastError = tx.Errors[len(tx.Errors)-1].Error()
	}
	if _, err := p.jobStore.TransitionTransaction(tx.Hash, status, update); err != nil {
		return err
	}

	switch status {
	case jobStore.TransactionStatus_Completed:
		result.Completed++
		result.Events += len(tx.Events)
		result.Inserted += inserted
	case jobStore.TransactionStatus_Failed:
		result.Failed++
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_TransactionFailed, nil, 1)
	}
	p.recordMetrics(tx, status)

	for _, perr := range tx.Errors {
		p.logger.Sugar().Warnw("Transaction processing error",
			zap.String("transactionHash", tx.Hash),
			zap.Uint64("blockNumber", tx.BlockNumber),
			zap.String("stage", string(perr.Stage)),
			zap.String("errorType", string(perr.Type)),
			zap.Error(perr),
		)
	}

	p.eventBus.Publish(&eventBusTypes.Event{
		Name: eventBusTypes.Event_DomainEventsEmitted,
		Data: &eventBusTypes.DomainEventsEmittedData{
			BlockNumber:     tx.BlockNumber,
			TransactionHash: tx.Hash,
			Status:          status,
			Events:          tx.Events,
			Errors:          tx.Errors,
			Inserted:        inserted,
		},
	})
	return nil
}

func (p *Processor) recordMetrics(tx *parser.Transaction, status jobStore.TransactionStatus) {
	if status == jobStore.TransactionStatus_Completed {
		kinds := make(map[domainEvents.EventKind]int)
		for _, ev := range tx.Events {
			kinds[ev.Kind()]++
		}
		for _, kind := range domainEvents.AllEventKinds {
			if count := kinds[kind]; count > 0 {
				_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventsEmitted, []metricsTypes.MetricsLabel{
					{Name: "kind", Value: string(kind)},
				}, float64(count))
			}
		}
	}
	for _, perr := range tx.Errors {
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_ProcessingErrors, []metricsTypes.MetricsLabel{
			{Name: "stage", Value: string(perr.Stage)},
		}, 1)
	}
}
