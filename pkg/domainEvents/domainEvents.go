// Package domainEvents defines the business-level events produced from decoded
// logs, their content-addressed identity and the errors recorded while
// producing them.
package domainEvents

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type EventKind string

const (
	EventKind_Trade     EventKind = "Trade"
	EventKind_PoolSwap  EventKind = "PoolSwap"
	EventKind_Position  EventKind = "Position"
	EventKind_Transfer  EventKind = "Transfer"
	EventKind_Liquidity EventKind = "Liquidity"
	EventKind_Reward    EventKind = "Reward"
)

// AllEventKinds is ordered; the order is used as a tie breaker when sorting
// events that share a log index.
var AllEventKinds = []EventKind{
	EventKind_Transfer,
	EventKind_PoolSwap,
	EventKind_Liquidity,
	EventKind_Position,
	EventKind_Reward,
	EventKind_Trade,
}

func (k EventKind) IsValid() bool {
	return k.Order() >= 0
}

func (k EventKind) Order() int {
	for i, kind := range AllEventKinds {
		if kind == k {
			return i
		}
	}
	return -1
}

// DomainEventId is the content-derived identity of an event.
type DomainEventId string

// NewDomainEventId hashes the transaction hash, a discriminator that is unique
// among the events of one kind in the transaction, and the kind. Each field is
// length-prefixed so no two distinct inputs share an encoding. The transaction
// hash is case-folded.
func NewDomainEventId(txHash string, discriminator string, kind EventKind) DomainEventId {
	fields := []string{
		strings.ToLower(txHash),
		discriminator,
		string(kind),
	}
	encoded := make([]byte, 0, 128)
	for _, f := range fields {
		encoded = binary.BigEndian.AppendUint32(encoded, uint32(len(f)))
		encoded = append(encoded, f...)
	}
	return DomainEventId(hexutil.Encode(crypto.Keccak256(encoded)))
}

// LogDiscriminator is the discriminator for events derived from a single log.
func LogDiscriminator(logIndex uint64) string {
	return fmt.Sprintf("log:%d", logIndex)
}

// ExpansionDiscriminator is the discriminator for the nth event fanned out of a single log.
func ExpansionDiscriminator(logIndex uint64, n int) string {
	return fmt.Sprintf("log:%d:%d", logIndex, n)
}

// AggregateDiscriminator is the discriminator for an event built from many logs.
func AggregateDiscriminator(key string) string {
	return fmt.Sprintf("agg:%s", key)
}

// EventMetadata is shared by every event kind.
type EventMetadata struct {
	ContentId   DomainEventId `json:"contentId"`
	TxHash      string        `json:"txHash"`
	BlockNumber uint64        `json:"blockNumber"`
	Timestamp   uint64        `json:"timestamp"`
	LogIndex    uint64        `json:"logIndex"`
}

func (m *EventMetadata) GetMetadata() *EventMetadata {
	return m
}

func (m *EventMetadata) isDomainEvent() {}

// DomainEvent is implemented only by the kinds in this package.
type DomainEvent interface {
	GetMetadata() *EventMetadata
	Kind() EventKind
	isDomainEvent()
}

type TransferClassification string

const (
	TransferClassification_Swap    TransferClassification = "swap"
	TransferClassification_Reward  TransferClassification = "reward"
	TransferClassification_Mint    TransferClassification = "mint"
	TransferClassification_Burn    TransferClassification = "burn"
	TransferClassification_Unknown TransferClassification = "unknown"
)

type LiquidityAction string

const (
	LiquidityAction_Add    LiquidityAction = "add"
	LiquidityAction_Remove LiquidityAction = "remove"
)

type PositionAction string

const (
	PositionAction_Increase PositionAction = "increase"
	PositionAction_Decrease PositionAction = "decrease"
)

// Trade summarizes the swap legs routed through one router or aggregator call.
type Trade struct {
	EventMetadata
	Trader        string   `json:"trader"`
	Router        string   `json:"router"`
	TokenIn       string   `json:"tokenIn"`
	TokenOut      string   `json:"tokenOut"`
	AmountIn      *big.Int `json:"amountIn"`
	AmountOut     *big.Int `json:"amountOut"`
	Pools         []string `json:"pools"`
	SwapCount     int      `json:"swapCount"`
	TransferCount int      `json:"transferCount"`
}

func (*Trade) Kind() EventKind { return EventKind_Trade }

type PoolSwap struct {
	EventMetadata
	Pool      string   `json:"pool"`
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	TokenIn   string   `json:"tokenIn"`
	TokenOut  string   `json:"tokenOut"`
	AmountIn  *big.Int `json:"amountIn"`
	AmountOut *big.Int `json:"amountOut"`
}

func (*PoolSwap) Kind() EventKind { return EventKind_PoolSwap }

type Position struct {
	EventMetadata
	Pool      string         `json:"pool"`
	Owner     string         `json:"owner"`
	Action    PositionAction `json:"action"`
	Liquidity *big.Int       `json:"liquidity"`
	Amount0   *big.Int       `json:"amount0"`
	Amount1   *big.Int       `json:"amount1"`
}

func (*Position) Kind() EventKind { return EventKind_Position }

type Transfer struct {
	EventMetadata
	Token          string                 `json:"token"`
	From           string                 `json:"from"`
	To             string                 `json:"to"`
	Amount         *big.Int               `json:"amount"`
	Classification TransferClassification `json:"classification"`
	ParentId       DomainEventId          `json:"parentId,omitempty"`
	ParentType     EventKind              `json:"parentType,omitempty"`
}

func (*Transfer) Kind() EventKind { return EventKind_Transfer }

type Liquidity struct {
	EventMetadata
	Pool      string          `json:"pool"`
	Provider  string          `json:"provider"`
	Action    LiquidityAction `json:"action"`
	Token0    string          `json:"token0"`
	Token1    string          `json:"token1"`
	Amount0   *big.Int        `json:"amount0"`
	Amount1   *big.Int        `json:"amount1"`
	Liquidity *big.Int        `json:"liquidity,omitempty"`
}

func (*Liquidity) Kind() EventKind { return EventKind_Liquidity }

type Reward struct {
	EventMetadata
	Contract  string   `json:"contract"`
	Recipient string   `json:"recipient"`
	Token     string   `json:"token"`
	Amount    *big.Int `json:"amount"`
}

func (*Reward) Kind() EventKind { return EventKind_Reward }

// PrimaryAmount is the amount stored alongside an event for range queries.
func PrimaryAmount(e DomainEvent) *big.Int {
	switch ev := e.(type) {
	case *Trade:
		return ev.AmountIn
	case *PoolSwap:
		return ev.AmountIn
	case *Position:
		return ev.Liquidity
	case *Transfer:
		return ev.Amount
	case *Liquidity:
		return ev.Amount0
	case *Reward:
		return ev.Amount
	}
	return nil
}

// SortEvents orders events by log index, then kind, then content id.
func SortEvents(events []DomainEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].GetMetadata(), events[j].GetMetadata()
		if a.LogIndex != b.LogIndex {
			return a.LogIndex < b.LogIndex
		}
		ka, kb := events[i].Kind().Order(), events[j].Kind().Order()
		if ka != kb {
			return ka < kb
		}
		return a.ContentId < b.ContentId
	})
}

// NewEventForKind returns an empty event of the given kind, suitable for unmarshalling.
func NewEventForKind(kind EventKind) (DomainEvent, error) {
	switch kind {
	case EventKind_Trade:
		return &Trade{}, nil
	case EventKind_PoolSwap:
		return &PoolSwap{}, nil
	case EventKind_Position:
		return &Position{}, nil
	case EventKind_Transfer:
		return &Transfer{}, nil
	case EventKind_Liquidity:
		return &Liquidity{}, nil
	case EventKind_Reward:
		return &Reward{}, nil
	}
	return nil, fmt.Errorf("unknown event kind '%s'", kind)
}
