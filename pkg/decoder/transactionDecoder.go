// Package decoder turns raw blocks, transactions and receipts into the
// decoded parser model. Decoding never fails: anything that cannot be
// decoded with the catalog's ABIs is kept in its encoded form.
package decoder

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const selectorLength = 4

type TransactionDecoder struct {
	catalog contractStore.Catalog
	logger  *zap.Logger
}

func NewTransactionDecoder(catalog contractStore.Catalog, l *zap.Logger) *TransactionDecoder {
	return &TransactionDecoder{
		catalog: catalog,
		logger:  l,
	}
}

func decodeHex(value string) ([]byte, error) {
	if value == "" || value == "0x" {
		return []byte{}, nil
	}
	return hexutil.Decode(value)
}

func (d *TransactionDecoder) DecodeFunction(tx *ethereum.EthereumTransaction) (method parser.MethodView) {
	input := tx.Input.Value()
	encoded := &parser.EncodedMethod{Calldata: input}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Sugar().Warnw("Recovered while decoding calldata",
				zap.String("transactionHash", tx.Hash.Value()),
				zap.Any("panic", r),
			)
			method = encoded
		}
	}()

	to := tx.To.Value()
	if to == "" {
		return encoded
	}
	data, err := decodeHex(input)
	if err != nil || len(data) < selectorLength {
		return encoded
	}
	encoded.Selector = hexutil.Encode(data[:selectorLength])

	a, ok := d.catalog.GetAbi(to)
	if !ok {
		return encoded
	}
	m, err := a.MethodById(data[:selectorLength])
	if err != nil {
		return encoded
	}
	values, err := m.Inputs.Unpack(data[selectorLength:])
	if err != nil {
		d.logger.Sugar().Debugw("Failed to unpack calldata",
			zap.String("transactionHash", tx.Hash.Value()),
			zap.String("method", m.RawName),
			zap.Error(err),
		)
		return encoded
	}

	args := make([]parser.Argument, 0, len(m.Inputs))
	for i, input := range m.Inputs {
		name := input.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		var value interface{}
		if i < len(values) {
			value = normalizeValue(values[i])
		}
		args = append(args, parser.Argument{
			Name:  name,
			Type:  input.Type.String(),
			Value: value,
		})
	}
	return &parser.DecodedMethod{
		Selector:  encoded.Selector,
		Name:      m.RawName,
		Arguments: args,
	}
}

func encodeLog(lg *ethereum.EthereumEventLog) *parser.EncodedLog {
	topics := make([]string, 0, len(lg.Topics))
	for _, t := range lg.Topics {
		topics = append(topics, t.Value())
	}
	signature := ""
	if len(topics) > 0 {
		signature = topics[0]
	}
	return &parser.EncodedLog{
		LogIndex:  lg.LogIndex.Value(),
		Address:   strings.ToLower(lg.Address.Value()),
		Signature: signature,
		Topics:    topics,
		Data:      lg.Data.Value(),
	}
}

func (d *TransactionDecoder) DecodeLog(lg *ethereum.EthereumEventLog) (view parser.LogView) {
	encoded := encodeLog(lg)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Sugar().Warnw("Recovered while decoding log",
				zap.String("transactionHash", lg.TransactionHash.Value()),
				zap.Uint64("logIndex", encoded.LogIndex),
				zap.Any("panic", r),
			)
			view = encoded
		}
	}()

	if len(lg.Topics) == 0 {
		return encoded
	}
	a, ok := d.catalog.GetAbi(encoded.Address)
	if !ok {
		return encoded
	}
	decoded, err := decodeLogWithAbi(a, lg, encoded)
	if err != nil {
		d.logger.Sugar().Debugw("Failed to decode log, keeping it encoded",
			zap.String("transactionHash", lg.TransactionHash.Value()),
			zap.Uint64("logIndex", encoded.LogIndex),
			zap.String("address", encoded.Address),
			zap.Error(err),
		)
		return encoded
	}
	return decoded
}

func decodeLogWithAbi(a *abi.ABI, lg *ethereum.EthereumEventLog, encoded *parser.EncodedLog) (*parser.DecodedLog, error) {
	event, err := a.EventByID(common.HexToHash(encoded.Signature))
	if err != nil {
		return nil, err
	}

	indexed := make(abi.Arguments, 0)
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(lg.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("event %s expects %d indexed topics, log has %d", event.Name, len(indexed), len(lg.Topics)-1)
	}

	values := make(map[string]interface{})
	topics := make([]common.Hash, 0, len(indexed))
	for _, t := range lg.Topics[1:] {
		topics = append(topics, common.HexToHash(t.Value()))
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}

	data, err := decodeHex(lg.Data.Value())
	if err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(values, data); err != nil {
			return nil, fmt.Errorf("failed to unpack data: %w", err)
		}
	}

	args := make([]parser.Argument, 0, len(event.Inputs))
	for _, input := range event.Inputs {
		value, ok := values[input.Name]
		if !ok {
			return nil, fmt.Errorf("event %s is missing argument '%s'", event.Name, input.Name)
		}
		args = append(args, parser.Argument{
			Name:    input.Name,
			Type:    input.Type.String(),
			Value:   normalizeValue(value),
			Indexed: input.Indexed,
		})
	}

	return &parser.DecodedLog{
		LogIndex:  encoded.LogIndex,
		Address:   encoded.Address,
		EventName: event.RawName,
		Signature: encoded.Signature,
		Arguments: args,
	}, nil
}

// DecodeLogs decodes every log of the receipt, ascending by log index.
// Logs removed by a reorg are dropped.
func (d *TransactionDecoder) DecodeLogs(receipt *ethereum.EthereumTransactionReceipt) []parser.LogView {
	logs := make([]*ethereum.EthereumEventLog, 0, len(receipt.Logs))
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Removed {
			continue
		}
		logs = append(logs, lg)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].LogIndex.Value() < logs[j].LogIndex.Value()
	})

	views := make([]parser.LogView, 0, len(logs))
	for _, lg := range logs {
		views = append(views, d.DecodeLog(lg))
	}
	return views
}

// Process decodes one transaction with its receipt. A panic outside the
// per-log and per-call guards yields a transaction flagged DecodeFailed.
func (d *TransactionDecoder) Process(
	tx *ethereum.EthereumTransaction,
	receipt *ethereum.EthereumTransactionReceipt,
) (result *parser.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Sugar().Errorw("Failed to decode transaction",
				zap.String("transactionHash", tx.Hash.Value()),
				zap.Any("panic", r),
			)
			result = newFailedTransaction(tx, fmt.Sprintf("%v", r))
		}
	}()

	t := newTransactionFromRaw(tx)
	t.Success = receipt.Succeeded()
	t.GasUsed = receipt.GasUsed.Value()
	if receipt.EffectiveGasPrice != nil {
		t.GasPrice = new(big.Int).SetUint64(receipt.EffectiveGasPrice.Value())
	}
	t.Function = d.DecodeFunction(tx)

	for _, view := range d.DecodeLogs(receipt) {
		t.Logs.Set(view.GetLogIndex(), view)
	}
	return t
}

func newTransactionFromRaw(tx *ethereum.EthereumTransaction) *parser.Transaction {
	t := parser.NewTransaction()
	t.Hash = strings.ToLower(tx.Hash.Value())
	t.BlockNumber = tx.BlockNumber.Value()
	t.BlockHash = strings.ToLower(tx.BlockHash.Value())
	t.TransactionIndex = tx.Index.Value()
	t.OriginFrom = strings.ToLower(tx.From.Value())
	t.OriginTo = strings.ToLower(tx.To.Value())
	t.Value = tx.Value.BigInt()
	t.GasPrice = tx.GasPrice.BigInt()
	return t
}

func newFailedTransaction(tx *ethereum.EthereumTransaction, reason string) *parser.Transaction {
	t := newTransactionFromRaw(tx)
	t.DecodeFailed = true
	t.Function = &parser.EncodedMethod{Calldata: tx.Input.Value()}
	t.AddError(domainEvents.NewProcessingError(
		domainEvents.ProcessingStage_Decode,
		domainEvents.ProcessingError_TransactionDecodeFailed,
		errors.New(reason),
	).WithContext("transactionHash", t.Hash))
	return t
}
