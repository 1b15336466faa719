package transformEngine

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/Layr-Labs/sidecar-events/pkg/transformRules"
	"github.com/Layr-Labs/sidecar-events/pkg/transformers"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// tradeAggregate collects the legs of one routed trade.
type tradeAggregate struct {
	key    string
	router string
	legs   []*domainEvents.PoolSwap
	// summary reported by the router itself, if it emits one
	summary         *domainEvents.Trade
	summaryLogIndex uint64
}

// transformState accumulates the events of a single transaction.
type transformState struct {
	tx      *parser.Transaction
	catalog contractStore.Catalog

	events    []domainEvents.DomainEvent
	transfers []*domainEvents.Transfer
	swaps     []*domainEvents.PoolSwap
	liquidity []*domainEvents.Liquidity
	rewards   []*domainEvents.Reward
	trades    *orderedmap.OrderedMap[string, *tradeAggregate]

	// swap legs of a transaction not sent to a router
	unroutedLegs []*domainEvents.PoolSwap
}

func newTransformState(tx *parser.Transaction, catalog contractStore.Catalog) *transformState {
	return &transformState{
		tx:           tx,
		catalog:      catalog,
		events:       make([]domainEvents.DomainEvent, 0),
		transfers:    make([]*domainEvents.Transfer, 0),
		swaps:        make([]*domainEvents.PoolSwap, 0),
		liquidity:    make([]*domainEvents.Liquidity, 0),
		rewards:      make([]*domainEvents.Reward, 0),
		trades:       orderedmap.New[string, *tradeAggregate](),
		unroutedLegs: make([]*domainEvents.PoolSwap, 0),
	}
}

func (s *transformState) stamp(ev domainEvents.DomainEvent, discriminator string, logIndex uint64) {
	m := ev.GetMetadata()
	m.ContentId = domainEvents.NewDomainEventId(s.tx.Hash, discriminator, ev.Kind())
	m.TxHash = strings.ToLower(s.tx.Hash)
	m.BlockNumber = s.tx.BlockNumber
	m.Timestamp = s.tx.Timestamp
	m.LogIndex = logIndex
}

func (s *transformState) emit(ev domainEvents.DomainEvent) {
	s.events = append(s.events, ev)
	switch e := ev.(type) {
	case *domainEvents.Transfer:
		s.transfers = append(s.transfers, e)
	case *domainEvents.PoolSwap:
		s.swaps = append(s.swaps, e)
	case *domainEvents.Liquidity:
		s.liquidity = append(s.liquidity, e)
	case *domainEvents.Reward:
		s.rewards = append(s.rewards, e)
	}
}

// applyRule turns a signal into events according to one rule.
func (s *transformState) applyRule(signal *transformers.Signal, rule *transformRules.Rule) error {
	switch rule.Cardinality {
	case transformRules.Cardinality_OneToOne:
		if signal.Draft.Kind() != rule.TargetKind {
			return fmt.Errorf("rule '%s' targets %s but the signal drafts %s", rule.Name, rule.TargetKind, signal.Draft.Kind())
		}
		s.stamp(signal.Draft, domainEvents.LogDiscriminator(signal.LogIndex), signal.LogIndex)
		s.emit(signal.Draft)
	case transformRules.Cardinality_OneToMany:
		if signal.Draft.Kind() != rule.TargetKind {
			return fmt.Errorf("rule '%s' targets %s but the signal drafts %s", rule.Name, rule.TargetKind, signal.Draft.Kind())
		}
		s.stamp(signal.Draft, domainEvents.LogDiscriminator(signal.LogIndex), signal.LogIndex)
		s.emit(signal.Draft)
		for i, child := range signal.Expansions {
			s.stamp(child, domainEvents.ExpansionDiscriminator(signal.LogIndex, i), signal.LogIndex)
			s.emit(child)
		}
	case transformRules.Cardinality_ManyToOne:
		return s.aggregateTrade(signal, rule)
	default:
		return fmt.Errorf("rule '%s' has unknown cardinality '%s'", rule.Name, rule.Cardinality)
	}
	return nil
}

// aggregateTrade adds a swap leg or a router summary to the trade of the
// router the transaction was sent to. Without one, a summary groups under the
// contract that emitted it and collects the unrouted legs when trades are
// finalized.
func (s *transformState) aggregateTrade(signal *transformers.Signal, rule *transformRules.Rule) error {
	switch draft := signal.Draft.(type) {
	case *domainEvents.PoolSwap:
		s.stamp(draft, domainEvents.LogDiscriminator(signal.LogIndex), signal.LogIndex)
		router, ok := s.routerTarget()
		if !ok {
			s.unroutedLegs = append(s.unroutedLegs, draft)
			return nil
		}
		agg := s.getTrade(router)
		agg.legs = append(agg.legs, draft)
	case *domainEvents.Trade:
		key := signal.ContractAddress
		if router, ok := s.routerTarget(); ok {
			key = router
		}
		agg := s.getTrade(key)
		if agg.summary != nil {
			return fmt.Errorf("router %s reported more than one trade", key)
		}
		agg.summary = draft
		agg.summaryLogIndex = signal.LogIndex
	default:
		return fmt.Errorf("rule '%s' cannot aggregate %s into a trade", rule.Name, signal.Draft.Kind())
	}
	return nil
}

// routerTarget is the recipient of the transaction when it is a router or aggregator.
func (s *transformState) routerTarget() (string, bool) {
	if s.tx.OriginTo == "" {
		return "", false
	}
	binding, ok := s.catalog.GetTransformer(s.tx.OriginTo)
	if !ok {
		return "", false
	}
	switch binding.Role {
	case contractStore.ContractRole_Router, contractStore.ContractRole_Aggregator:
		return strings.ToLower(s.tx.OriginTo), true
	}
	return "", false
}

func (s *transformState) getTrade(router string) *tradeAggregate {
	router = strings.ToLower(router)
	key := "router:" + router
	if agg, ok := s.trades.Get(key); ok {
		return agg
	}
	agg := &tradeAggregate{key: key, router: router}
	s.trades.Set(key, agg)
	return agg
}

// finalizeTrades builds one Trade per aggregate. Transfers must already be
// reconciled so transfer counts can be attributed.
func (s *transformState) finalizeTrades() {
	s.attachUnroutedLegs()
	for pair := s.trades.Oldest(); pair != nil; pair = pair.Next() {
		agg := pair.Value
		if len(agg.legs) == 0 && agg.summary == nil {
			continue
		}
		trade := &domainEvents.Trade{
			Trader: s.tx.OriginFrom,
			Router: agg.router,
			Pools:  make([]string, 0, len(agg.legs)),
		}
		legIds := make(map[domainEvents.DomainEventId]bool, len(agg.legs))
		for _, leg := range agg.legs {
			trade.Pools = append(trade.Pools, leg.Pool)
			legIds[leg.ContentId] = true
		}
		logIndex := agg.summaryLogIndex
		if len(agg.legs) > 0 {
			first, last := agg.legs[0], agg.legs[len(agg.legs)-1]
			trade.TokenIn, trade.AmountIn = first.TokenIn, copyAmount(first.AmountIn)
			trade.TokenOut, trade.AmountOut = last.TokenOut, copyAmount(last.AmountOut)
			logIndex = first.LogIndex
		}
		if agg.summary != nil {
			trade.Trader = agg.summary.Trader
			trade.TokenIn, trade.AmountIn = agg.summary.TokenIn, copyAmount(agg.summary.AmountIn)
			trade.TokenOut, trade.AmountOut = agg.summary.TokenOut, copyAmount(agg.summary.AmountOut)
		}
		trade.SwapCount = len(agg.legs)
		for _, t := range s.transfers {
			if t.ParentType == domainEvents.EventKind_PoolSwap && legIds[t.ParentId] {
				trade.TransferCount++
			}
		}
		s.stamp(trade, domainEvents.AggregateDiscriminator(agg.key), logIndex)
		s.events = append(s.events, trade)
	}
}

// attachUnroutedLegs gives the swap legs of a transaction sent through an
// unbound contract to the single router summary it contains, if any.
func (s *transformState) attachUnroutedLegs() {
	if len(s.unroutedLegs) == 0 {
		return
	}
	var target *tradeAggregate
	for pair := s.trades.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.summary == nil || len(pair.Value.legs) > 0 {
			continue
		}
		if target != nil {
			return
		}
		target = pair.Value
	}
	if target != nil {
		target.legs = append(target.legs, s.unroutedLegs...)
	}
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
