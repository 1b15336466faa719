// Package chainFixtures builds raw blocks, transactions and receipts whose
// logs are ABI-encoded with the builtin ABIs.
package chainFixtures

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/abis"
	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/fetcher"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Address returns a deterministic address derived from a label.
func Address(label string) string {
	return strings.ToLower(common.BytesToAddress(crypto.Keccak256([]byte(label))).Hex())
}

// TxHash returns a deterministic transaction hash derived from a label.
func TxHash(label string) string {
	return common.BytesToHash(crypto.Keccak256([]byte("tx:" + label))).Hex()
}

func quantity(v uint64) *ethereum.EthereumQuantity {
	q := ethereum.EthereumQuantity(v)
	return &q
}

// EncodeLog packs values, given in the event's input order, into a log.
func EncodeLog(builtin abis.BuiltinAbi, eventName string, address string, logIndex uint64, values ...interface{}) *ethereum.EthereumEventLog {
	a := abis.MustGetBuiltinAbi(builtin)
	event, ok := a.Events[eventName]
	if !ok {
		panic(fmt.Sprintf("event %s not found in %s", eventName, builtin))
	}
	if len(values) != len(event.Inputs) {
		panic(fmt.Sprintf("event %s takes %d values, got %d", eventName, len(event.Inputs), len(values)))
	}

	topics := []ethereum.EthereumHexString{ethereum.EthereumHexString(strings.ToLower(event.ID.Hex()))}
	nonIndexed := make([]interface{}, 0)
	for i, input := range event.Inputs {
		if !input.Indexed {
			nonIndexed = append(nonIndexed, values[i])
			continue
		}
		var topic common.Hash
		switch v := values[i].(type) {
		case common.Address:
			topic = common.BytesToHash(v.Bytes())
		case *big.Int:
			topic = common.BytesToHash(math256(v))
		default:
			panic(fmt.Sprintf("unsupported indexed value %T", v))
		}
		topics = append(topics, ethereum.EthereumHexString(strings.ToLower(topic.Hex())))
	}
	data, err := event.Inputs.NonIndexed().Pack(nonIndexed...)
	if err != nil {
		panic(err)
	}
	return &ethereum.EthereumEventLog{
		LogIndex: ethereum.EthereumQuantity(logIndex),
		Address:  ethereum.EthereumHexString(strings.ToLower(address)),
		Data:     ethereum.EthereumHexString(hexutil.Encode(data)),
		Topics:   topics,
	}
}

// math256 returns the 32 byte two's complement encoding of v.
func math256(v *big.Int) []byte {
	if v.Sign() >= 0 {
		return common.LeftPadBytes(v.Bytes(), 32)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	return common.LeftPadBytes(new(big.Int).Add(mod, v).Bytes(), 32)
}

func addr(a string) common.Address {
	return common.HexToAddress(a)
}

func TransferLog(token string, from string, to string, amount int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_ERC20, "Transfer", token, logIndex, addr(from), addr(to), big.NewInt(amount))
}

func V2SwapLog(pool string, sender string, to string, amount0In, amount1In, amount0Out, amount1Out int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_UniswapV2Pair, "Swap", pool, logIndex,
		addr(sender),
		big.NewInt(amount0In), big.NewInt(amount1In), big.NewInt(amount0Out), big.NewInt(amount1Out),
		addr(to),
	)
}

func V2MintLog(pool string, sender string, amount0, amount1 int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_UniswapV2Pair, "Mint", pool, logIndex, addr(sender), big.NewInt(amount0), big.NewInt(amount1))
}

func V2BurnLog(pool string, sender string, amount0, amount1 int64, to string, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_UniswapV2Pair, "Burn", pool, logIndex, addr(sender), big.NewInt(amount0), big.NewInt(amount1), addr(to))
}

func V3SwapLog(pool string, sender string, recipient string, amount0, amount1 int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_UniswapV3Pool, "Swap", pool, logIndex,
		addr(sender), addr(recipient),
		big.NewInt(amount0), big.NewInt(amount1),
		new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1000000), big.NewInt(-120),
	)
}

func V3MintLog(pool string, sender string, owner string, liquidity, amount0, amount1 int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_UniswapV3Pool, "Mint", pool, logIndex,
		addr(sender), addr(owner), big.NewInt(-600), big.NewInt(600),
		big.NewInt(liquidity), big.NewInt(amount0), big.NewInt(amount1),
	)
}

func V3BurnLog(pool string, owner string, liquidity, amount0, amount1 int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_UniswapV3Pool, "Burn", pool, logIndex,
		addr(owner), big.NewInt(-600), big.NewInt(600),
		big.NewInt(liquidity), big.NewInt(amount0), big.NewInt(amount1),
	)
}

func SwappedLog(aggregator string, sender string, srcToken string, dstToken string, receiver string, spent, returned int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_Aggregator, "Swapped", aggregator, logIndex,
		addr(sender), addr(srcToken), addr(dstToken), addr(receiver), big.NewInt(spent), big.NewInt(returned),
	)
}

func RewardPaidLog(contract string, user string, reward int64, logIndex uint64) *ethereum.EthereumEventLog {
	return EncodeLog(abis.BuiltinAbi_StakingRewards, "RewardPaid", contract, logIndex, addr(user), big.NewInt(reward))
}

// Calldata packs a call to a builtin ABI method.
func Calldata(builtin abis.BuiltinAbi, method string, args ...interface{}) string {
	data, err := abis.MustGetBuiltinAbi(builtin).Pack(method, args...)
	if err != nil {
		panic(err)
	}
	return hexutil.Encode(data)
}

type TxSpec struct {
	Label   string
	From    string
	To      string
	Input   string
	Value   int64
	Failed  bool
	Logs    []*ethereum.EthereumEventLog
	GasUsed uint64
}

// Build returns the transaction and receipt for a spec at position index of block blockNumber.
func (s *TxSpec) Build(blockNumber uint64, index uint64) (*ethereum.EthereumTransaction, *ethereum.EthereumTransactionReceipt) {
	hash := ethereum.EthereumHexString(strings.ToLower(TxHash(s.Label)))
	blockHash := ethereum.EthereumHexString(strings.ToLower(BlockHash(blockNumber)))
	input := s.Input
	if input == "" {
		input = "0x"
	}
	tx := &ethereum.EthereumTransaction{
		BlockHash:   blockHash,
		BlockNumber: ethereum.EthereumQuantity(blockNumber),
		From:        ethereum.EthereumHexString(strings.ToLower(s.From)),
		Hash:        hash,
		Input:       ethereum.EthereumHexString(input),
		To:          ethereum.EthereumHexString(strings.ToLower(s.To)),
		Index:       ethereum.EthereumQuantity(index),
		Value:       ethereum.EthereumBigQuantity(*big.NewInt(s.Value)),
		GasPrice:    ethereum.EthereumBigQuantity(*big.NewInt(1000000000)),
	}
	status := uint64(1)
	if s.Failed {
		status = 0
	}
	for _, lg := range s.Logs {
		lg.TransactionHash = hash
		lg.TransactionIndex = ethereum.EthereumQuantity(index)
		lg.BlockHash = blockHash
		lg.BlockNumber = ethereum.EthereumQuantity(blockNumber)
	}
	gasUsed := s.GasUsed
	if gasUsed == 0 {
		gasUsed = 21000
	}
	receipt := &ethereum.EthereumTransactionReceipt{
		TransactionHash:   hash,
		TransactionIndex:  ethereum.EthereumQuantity(index),
		BlockHash:         blockHash,
		BlockNumber:       ethereum.EthereumQuantity(blockNumber),
		From:              tx.From,
		To:                tx.To,
		GasUsed:           ethereum.EthereumQuantity(gasUsed),
		Logs:              s.Logs,
		Status:            quantity(status),
		EffectiveGasPrice: quantity(1000000000),
	}
	return tx, receipt
}

func BlockHash(blockNumber uint64) string {
	return common.BytesToHash(crypto.Keccak256([]byte(fmt.Sprintf("block:%d", blockNumber)))).Hex()
}

// Block assembles a fetched block from transaction specs.
func Block(blockNumber uint64, specs ...*TxSpec) *fetcher.FetchedBlock {
	block := &ethereum.EthereumBlock{
		Hash:         ethereum.EthereumHexString(strings.ToLower(BlockHash(blockNumber))),
		ParentHash:   ethereum.EthereumHexString(strings.ToLower(BlockHash(blockNumber - 1))),
		Number:       ethereum.EthereumQuantity(blockNumber),
		Timestamp:    ethereum.EthereumQuantity(1700000000 + blockNumber*12),
		Transactions: make([]*ethereum.EthereumTransaction, 0, len(specs)),
	}
	receipts := make([]*ethereum.EthereumTransactionReceipt, 0, len(specs))
	for i, s := range specs {
		tx, r := s.Build(blockNumber, uint64(i))
		block.Transactions = append(block.Transactions, tx)
		receipts = append(receipts, r)
	}
	return &fetcher.FetchedBlock{Block: block, Receipts: receipts}
}
