// Package transformEngine reconstructs domain events from the decoded logs
// of a transaction.
package transformEngine

import (
	"fmt"

	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/Layr-Labs/sidecar-events/pkg/transformRules"
	"github.com/Layr-Labs/sidecar-events/pkg/transformers"
	"go.uber.org/zap"
)

type Engine struct {
	registry *transformers.Registry
	catalog  contractStore.Catalog
	rules    *transformRules.RuleSet
	logger   *zap.Logger
}

func NewEngine(
	registry *transformers.Registry,
	catalog contractStore.Catalog,
	rules *transformRules.RuleSet,
	l *zap.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		catalog:  catalog,
		rules:    rules,
		logger:   l,
	}
}

// Transform fills tx.Events and appends transform errors to tx.Errors. A
// failing log never prevents the remaining logs from being transformed.
// The result depends only on the transaction, the catalog and the rules.
func (e *Engine) Transform(tx *parser.Transaction) *parser.Transaction {
	if tx.DecodeFailed {
		return tx
	}
	worklist := NewWorklist(tx, e.catalog)
	state := newTransformState(tx, e.catalog)

	for _, item := range worklist.Items() {
		signals, perr := e.dispatch(tx, item)
		if perr != nil {
			e.recordError(tx, perr)
			continue
		}
		for _, signal := range signals {
			if perr := e.applyRules(state, signal); perr != nil {
				e.recordError(tx, perr)
			}
		}
	}

	state.reconcileTransfers()
	state.finalizeTrades()

	events := dedupeEvents(tx, state.events)
	domainEvents.SortEvents(events)
	tx.Events = events

	e.logger.Sugar().Debugw("Transformed transaction",
		zap.String("transactionHash", tx.Hash),
		zap.Int("logs", worklist.Len()),
		zap.Int("skippedLogs", worklist.Skipped()),
		zap.Int("events", len(tx.Events)),
		zap.Int("errors", len(tx.Errors)),
	)
	return tx
}

func (e *Engine) dispatch(tx *parser.Transaction, item *WorkItem) (signals []*transformers.Signal, perr *domainEvents.ProcessingError) {
	lg := item.Log
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			perr = domainEvents.NewProcessingError(
				domainEvents.ProcessingStage_Transform,
				domainEvents.ProcessingError_HandlerPanicked,
				fmt.Errorf("handler for %s panicked: %v", lg.EventName, r),
			).WithLogIndex(lg.LogIndex).
				WithContext("contract", lg.Address).
				WithContext("event", lg.EventName)
		}
	}()

	handler, ok := e.registry.GetHandler(item.Binding.Role, lg.EventName)
	if !ok {
		return nil, nil
	}
	signals, err := handler.Handle(&transformers.HandlerContext{Transaction: tx, Binding: item.Binding}, lg)
	if err != nil {
		return nil, domainEvents.NewProcessingError(
			domainEvents.ProcessingStage_Transform,
			domainEvents.ProcessingError_HandlerFailed,
			err,
		).WithLogIndex(lg.LogIndex).
			WithContext("contract", lg.Address).
			WithContext("event", lg.EventName)
	}
	return signals, nil
}

func (e *Engine) applyRules(state *transformState, signal *transformers.Signal) (perr *domainEvents.ProcessingError) {
	defer func() {
		if r := recover(); r != nil {
			perr = domainEvents.NewProcessingError(
				domainEvents.ProcessingStage_Transform,
				domainEvents.ProcessingError_AggregationFailed,
				fmt.Errorf("applying rules panicked: %v", r),
			).WithLogIndex(signal.LogIndex)
		}
	}()
	if signal.Draft == nil {
		return nil
	}

	rules := e.rules.RulesFor(signal.SourceEvent, string(signal.Role), signal.ContractAddress)
	if len(rules) == 0 {
		e.logger.Sugar().Debugw("No rule applies to signal",
			zap.String("event", signal.SourceEvent),
			zap.String("role", string(signal.Role)),
			zap.Uint64("logIndex", signal.LogIndex),
		)
		return nil
	}
	for _, rule := range rules {
		if err := state.applyRule(signal, rule); err != nil {
			return domainEvents.NewProcessingError(
				domainEvents.ProcessingStage_Transform,
				domainEvents.ProcessingError_RuleApplicationFailed,
				err,
			).WithLogIndex(signal.LogIndex).
				WithContext("rule", rule.Name)
		}
	}
	return nil
}

func (e *Engine) recordError(tx *parser.Transaction, perr *domainEvents.ProcessingError) {
	tx.AddError(perr)
	e.logger.Sugar().Warnw("Failed to transform log",
		zap.String("transactionHash", tx.Hash),
		zap.String("errorType", string(perr.Type)),
		zap.Error(perr),
	)
}

// dedupeEvents keeps the first event for every content id.
func dedupeEvents(tx *parser.Transaction, events []domainEvents.DomainEvent) []domainEvents.DomainEvent {
	seen := make(map[domainEvents.DomainEventId]bool, len(events))
	unique := make([]domainEvents.DomainEvent, 0, len(events))
	for _, ev := range events {
		id := ev.GetMetadata().ContentId
		if seen[id] {
			tx.AddError(domainEvents.NewProcessingError(
				domainEvents.ProcessingStage_Transform,
				domainEvents.ProcessingError_AggregationFailed,
				fmt.Errorf("duplicate %s event %s", ev.Kind(), id),
			).WithLogIndex(ev.GetMetadata().LogIndex))
			continue
		}
		seen[id] = true
		unique = append(unique, ev)
	}
	return unique
}
