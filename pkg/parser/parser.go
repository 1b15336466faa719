// Package parser holds the decoded, chain-agnostic view of blocks,
// transactions and logs that transformers consume.
package parser

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Argument struct {
	Name    string
	Type    string
	Value   interface{}
	Indexed bool
}

// LogView is either a DecodedLog or an EncodedLog.
type LogView interface {
	GetLogIndex() uint64
	GetAddress() string
	IsDecoded() bool
	isLogView()
}

type DecodedLog struct {
	LogIndex  uint64
	Address   string
	EventName string
	Signature string
	Arguments []Argument
}

func (l *DecodedLog) GetLogIndex() uint64 { return l.LogIndex }
func (l *DecodedLog) GetAddress() string  { return l.Address }
func (l *DecodedLog) IsDecoded() bool     { return true }
func (l *DecodedLog) isLogView()          {}

func (l *DecodedLog) FindArgument(name string) (Argument, bool) {
	for _, arg := range l.Arguments {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// GetBigInt returns a numeric argument as a big.Int.
func (l *DecodedLog) GetBigInt(name string) (*big.Int, error) {
	arg, ok := l.FindArgument(name)
	if !ok {
		return nil, fmt.Errorf("log %d (%s) has no argument '%s'", l.LogIndex, l.EventName, name)
	}
	v, ok := ToBigInt(arg.Value)
	if !ok {
		return nil, fmt.Errorf("argument '%s' of log %d is %T, not a number", name, l.LogIndex, arg.Value)
	}
	return v, nil
}

// GetAddressArgument returns an address argument, lowercased.
func (l *DecodedLog) GetAddressArgument(name string) (string, error) {
	arg, ok := l.FindArgument(name)
	if !ok {
		return "", fmt.Errorf("log %d (%s) has no argument '%s'", l.LogIndex, l.EventName, name)
	}
	s, ok := arg.Value.(string)
	if !ok {
		return "", fmt.Errorf("argument '%s' of log %d is %T, not an address", name, l.LogIndex, arg.Value)
	}
	return strings.ToLower(s), nil
}

// EncodedLog is a log that could not be decoded. Never an error on its own.
type EncodedLog struct {
	LogIndex  uint64
	Address   string
	Signature string
	Topics    []string
	Data      string
}

func (l *EncodedLog) GetLogIndex() uint64 { return l.LogIndex }
func (l *EncodedLog) GetAddress() string  { return l.Address }
func (l *EncodedLog) IsDecoded() bool     { return false }
func (l *EncodedLog) isLogView()          {}

// MethodView is either a DecodedMethod or an EncodedMethod.
type MethodView interface {
	IsDecoded() bool
	isMethodView()
}

type DecodedMethod struct {
	Selector  string
	Name      string
	Arguments []Argument
}

func (m *DecodedMethod) IsDecoded() bool { return true }
func (m *DecodedMethod) isMethodView()   {}

type EncodedMethod struct {
	Selector string
	Calldata string
}

func (m *EncodedMethod) IsDecoded() bool { return false }
func (m *EncodedMethod) isMethodView()   {}

type Transaction struct {
	Hash             string
	BlockNumber      uint64
	BlockHash        string
	Timestamp        uint64
	TransactionIndex uint64
	OriginFrom       string
	OriginTo         string
	Value            *big.Int
	Success          bool
	GasUsed          uint64
	GasPrice         *big.Int
	Function         MethodView
	Logs             *orderedmap.OrderedMap[uint64, LogView]
	Events           []domainEvents.DomainEvent
	Errors           []*domainEvents.ProcessingError

	// DecodeFailed is set when the transaction could not be decoded at all;
	// Errors then carries the decode-stage failure.
	DecodeFailed bool
}

func NewTransaction() *Transaction {
	return &Transaction{
		Value:    big.NewInt(0),
		GasPrice: big.NewInt(0),
		Logs:     orderedmap.New[uint64, LogView](),
		Events:   make([]domainEvents.DomainEvent, 0),
		Errors:   make([]*domainEvents.ProcessingError, 0),
	}
}

// SortedLogs returns the logs ascending by log index.
func (t *Transaction) SortedLogs() []LogView {
	logs := make([]LogView, 0, t.Logs.Len())
	for pair := t.Logs.Oldest(); pair != nil; pair = pair.Next() {
		logs = append(logs, pair.Value)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].GetLogIndex() < logs[j].GetLogIndex()
	})
	return logs
}

func (t *Transaction) AddError(err *domainEvents.ProcessingError) {
	t.Errors = append(t.Errors, err)
}

type Block struct {
	Number       uint64
	Hash         string
	ParentHash   string
	Timestamp    uint64
	Transactions []*Transaction
}

// ToBigInt converts the numeric values produced by ABI decoding.
func ToBigInt(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case big.Int:
		return new(big.Int).Set(&n), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case int:
		return big.NewInt(int64(n)), true
	}
	return nil, false
}
