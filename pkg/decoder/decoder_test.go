package decoder

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/sidecar-events/internal/tests"
	"github.com/Layr-Labs/sidecar-events/internal/tests/chainFixtures"
	"github.com/Layr-Labs/sidecar-events/pkg/abis"
	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	tokenA   = chainFixtures.Address("tokenA")
	tokenB   = chainFixtures.Address("tokenB")
	poolV2   = chainFixtures.Address("poolV2")
	poolV3   = chainFixtures.Address("poolV3")
	router   = chainFixtures.Address("router")
	user     = chainFixtures.Address("user")
	stranger = chainFixtures.Address("stranger")
)

func buildCatalog() contractStore.Catalog {
	return contractStore.NewStaticCatalog([]*contractStore.Contract{
		{ContractAddress: tokenA, TransformerRole: contractStore.ContractRole_Token},
		{ContractAddress: tokenB, TransformerRole: contractStore.ContractRole_Token},
		{ContractAddress: poolV2, TransformerRole: contractStore.ContractRole_PoolV2, Token0: tokenA, Token1: tokenB},
		{ContractAddress: poolV3, TransformerRole: contractStore.ContractRole_PoolV3, Token0: tokenA, Token1: tokenB},
		{ContractAddress: router, TransformerRole: contractStore.ContractRole_Router},
	}, tests.GetTestLogger())
}

type panickingCatalog struct{}

func (panickingCatalog) HasContract(string) bool { return true }
func (panickingCatalog) GetAbi(string) (*abi.ABI, bool) {
	panic("catalog exploded")
}
func (panickingCatalog) GetTransformer(string) (*contractStore.TransformerBinding, bool) {
	return nil, false
}

func Test_TransactionDecoder_Logs(t *testing.T) {
	d := NewTransactionDecoder(buildCatalog(), tests.GetTestLogger())

	t.Run("Should decode an erc20 transfer", func(t *testing.T) {
		view := d.DecodeLog(chainFixtures.TransferLog(tokenA, user, poolV2, 100, 3))
		decoded, ok := view.(*parser.DecodedLog)
		assert.True(t, ok)
		assert.Equal(t, "Transfer", decoded.EventName)
		assert.Equal(t, uint64(3), decoded.LogIndex)
		assert.Equal(t, tokenA, decoded.Address)
		assert.Equal(t, []string{"from", "to", "value"}, []string{decoded.Arguments[0].Name, decoded.Arguments[1].Name, decoded.Arguments[2].Name})
		assert.True(t, decoded.Arguments[0].Indexed)

		from, err := decoded.GetAddressArgument("from")
		assert.Nil(t, err)
		assert.Equal(t, user, from)
		value, err := decoded.GetBigInt("value")
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(100), value)
	})
	t.Run("Should decode signed amounts and indexed ticks", func(t *testing.T) {
		swap := d.DecodeLog(chainFixtures.V3SwapLog(poolV3, router, user, -42, 100, 0)).(*parser.DecodedLog)
		amount0, err := swap.GetBigInt("amount0")
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(-42), amount0)
		tick, err := swap.GetBigInt("tick")
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(-120), tick)

		mint := d.DecodeLog(chainFixtures.V3MintLog(poolV3, router, user, 5000, 10, 20, 1)).(*parser.DecodedLog)
		lower, err := mint.GetBigInt("tickLower")
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(-600), lower)
		owner, err := mint.GetAddressArgument("owner")
		assert.Nil(t, err)
		assert.Equal(t, user, owner)
	})
	t.Run("Should keep logs of unknown contracts encoded", func(t *testing.T) {
		lg := chainFixtures.TransferLog(stranger, user, poolV2, 100, 7)
		view := d.DecodeLog(lg)
		encoded, ok := view.(*parser.EncodedLog)
		assert.True(t, ok)
		assert.Equal(t, uint64(7), encoded.LogIndex)
		assert.Equal(t, lg.Data.Value(), encoded.Data)
		assert.Equal(t, 3, len(encoded.Topics))
		assert.Equal(t, encoded.Topics[0], encoded.Signature)
	})
	t.Run("Should keep logs with an unknown topic encoded", func(t *testing.T) {
		lg := chainFixtures.TransferLog(tokenA, user, poolV2, 100, 1)
		lg.Topics[0] = ethereum.EthereumHexString(common.HexToHash("0x1234").Hex())
		_, ok := d.DecodeLog(lg).(*parser.EncodedLog)
		assert.True(t, ok)
	})
	t.Run("Should keep logs with truncated data encoded", func(t *testing.T) {
		lg := chainFixtures.TransferLog(tokenA, user, poolV2, 100, 1)
		lg.Data = "0x1234"
		_, ok := d.DecodeLog(lg).(*parser.EncodedLog)
		assert.True(t, ok)
	})
	t.Run("Should keep logs with a wrong topic count encoded", func(t *testing.T) {
		lg := chainFixtures.TransferLog(tokenA, user, poolV2, 100, 1)
		lg.Topics = lg.Topics[:2]
		_, ok := d.DecodeLog(lg).(*parser.EncodedLog)
		assert.True(t, ok)
	})
	t.Run("Should keep anonymous logs encoded", func(t *testing.T) {
		lg := chainFixtures.TransferLog(tokenA, user, poolV2, 100, 1)
		lg.Topics = nil
		encoded, ok := d.DecodeLog(lg).(*parser.EncodedLog)
		assert.True(t, ok)
		assert.Equal(t, "", encoded.Signature)
	})
	t.Run("Should recover from a panicking catalog", func(t *testing.T) {
		pd := NewTransactionDecoder(panickingCatalog{}, tests.GetTestLogger())
		_, ok := pd.DecodeLog(chainFixtures.TransferLog(tokenA, user, poolV2, 100, 1)).(*parser.EncodedLog)
		assert.True(t, ok)
	})
	t.Run("Should order decoded logs by index and drop removed logs", func(t *testing.T) {
		removed := chainFixtures.TransferLog(tokenA, user, poolV2, 1, 4)
		removed.Removed = true
		receipt := &ethereum.EthereumTransactionReceipt{Logs: []*ethereum.EthereumEventLog{
			chainFixtures.TransferLog(tokenA, user, poolV2, 1, 9),
			removed,
			chainFixtures.TransferLog(tokenA, user, poolV2, 1, 2),
		}}
		views := d.DecodeLogs(receipt)
		assert.Equal(t, 2, len(views))
		assert.Equal(t, uint64(2), views[0].GetLogIndex())
		assert.Equal(t, uint64(9), views[1].GetLogIndex())
	})
}

func Test_TransactionDecoder_Functions(t *testing.T) {
	d := NewTransactionDecoder(buildCatalog(), tests.GetTestLogger())

	t.Run("Should decode router calldata", func(t *testing.T) {
		input := chainFixtures.Calldata(abis.BuiltinAbi_UniswapV2Router, "swapExactTokensForTokens",
			big.NewInt(100), big.NewInt(40),
			[]common.Address{common.HexToAddress(tokenA), common.HexToAddress(tokenB)},
			common.HexToAddress(user), big.NewInt(1700000000),
		)
		tx := &ethereum.EthereumTransaction{To: ethereum.EthereumHexString(router), Input: ethereum.EthereumHexString(input)}
		method, ok := d.DecodeFunction(tx).(*parser.DecodedMethod)
		assert.True(t, ok)
		assert.Equal(t, "swapExactTokensForTokens", method.Name)
		assert.Equal(t, input[:10], method.Selector)
		assert.Equal(t, "path", method.Arguments[2].Name)
		assert.Equal(t, []string{tokenA, tokenB}, method.Arguments[2].Value)
		assert.Equal(t, user, method.Arguments[3].Value)
	})
	t.Run("Should keep calldata encoded when it cannot be decoded", func(t *testing.T) {
		cases := []*ethereum.EthereumTransaction{
			{To: "", Input: "0xa9059cbb"},
			{To: ethereum.EthereumHexString(router), Input: "0x"},
			{To: ethereum.EthereumHexString(router), Input: "0xa905"},
			{To: ethereum.EthereumHexString(stranger), Input: "0xa9059cbb0000"},
			{To: ethereum.EthereumHexString(router), Input: "0xdeadbeef"},
			{To: ethereum.EthereumHexString(tokenA), Input: "0xa9059cbb0000"},
			{To: ethereum.EthereumHexString(router), Input: "0xnothex"},
		}
		for _, tx := range cases {
			method, ok := d.DecodeFunction(tx).(*parser.EncodedMethod)
			assert.True(t, ok, tx.Input.Value())
			assert.Equal(t, tx.Input.Value(), method.Calldata)
		}
	})
}

func Test_TransactionDecoder_Process(t *testing.T) {
	d := NewTransactionDecoder(buildCatalog(), tests.GetTestLogger())

	t.Run("Should decode a transaction with its receipt", func(t *testing.T) {
		spec := &chainFixtures.TxSpec{
			Label: "process",
			From:  user,
			To:    router,
			Value: 5,
			Logs: []*ethereum.EthereumEventLog{
				chainFixtures.TransferLog(tokenA, user, poolV2, 100, 11),
				chainFixtures.V2SwapLog(poolV2, router, user, 100, 0, 0, 42, 12),
				chainFixtures.TransferLog(tokenB, poolV2, user, 42, 13),
			},
		}
		raw, receipt := spec.Build(50, 2)
		tx := d.Process(raw, receipt)

		assert.False(t, tx.DecodeFailed)
		assert.True(t, tx.Success)
		assert.Equal(t, uint64(2), tx.TransactionIndex)
		assert.Equal(t, user, tx.OriginFrom)
		assert.Equal(t, router, tx.OriginTo)
		assert.Equal(t, big.NewInt(5), tx.Value)
		assert.Equal(t, big.NewInt(1000000000), tx.GasPrice)
		assert.Equal(t, 3, tx.Logs.Len())

		logs := tx.SortedLogs()
		assert.Equal(t, uint64(11), logs[0].GetLogIndex())
		assert.Equal(t, "Swap", logs[1].(*parser.DecodedLog).EventName)
	})
	t.Run("Should read a failed receipt status", func(t *testing.T) {
		spec := &chainFixtures.TxSpec{Label: "reverted", From: user, To: router, Failed: true}
		raw, receipt := spec.Build(50, 0)
		tx := d.Process(raw, receipt)
		assert.False(t, tx.Success)
		assert.Equal(t, 0, tx.Logs.Len())
	})
	t.Run("Should flag a transaction that cannot be decoded at all", func(t *testing.T) {
		spec := &chainFixtures.TxSpec{Label: "broken", From: user, To: router}
		raw, _ := spec.Build(50, 0)
		tx := d.Process(raw, nil)

		assert.True(t, tx.DecodeFailed)
		assert.Equal(t, 1, len(tx.Errors))
		assert.Equal(t, domainEvents.ProcessingStage_Decode, tx.Errors[0].Stage)
		assert.Equal(t, domainEvents.ProcessingError_TransactionDecodeFailed, tx.Errors[0].Type)
		assert.Equal(t, raw.Hash.Value(), tx.Hash)
	})
}

func Test_BlockDecoder(t *testing.T) {
	l := tests.GetTestLogger()
	bd := NewBlockDecoder(NewTransactionDecoder(buildCatalog(), l), l)

	specs := []*chainFixtures.TxSpec{
		{Label: "a", From: user, To: tokenA, Logs: []*ethereum.EthereumEventLog{chainFixtures.TransferLog(tokenA, user, stranger, 1, 0)}},
		{Label: "b", From: user, To: stranger},
		{Label: "c", From: user, To: tokenB, Logs: []*ethereum.EthereumEventLog{chainFixtures.TransferLog(tokenB, user, stranger, 1, 1)}},
	}

	t.Run("Should decode every transaction in block order", func(t *testing.T) {
		raw := chainFixtures.Block(77, specs...)
		block, err := bd.DecodeBlock(raw)
		assert.Nil(t, err)
		assert.Equal(t, uint64(77), block.Number)
		assert.Equal(t, 3, len(block.Transactions))
		for i, tx := range block.Transactions {
			assert.Equal(t, uint64(i), tx.TransactionIndex)
			assert.Equal(t, block.Timestamp, tx.Timestamp)
			assert.Equal(t, block.Hash, tx.BlockHash)
		}
	})
	t.Run("Should decode a subset of transactions", func(t *testing.T) {
		raw := chainFixtures.Block(77, specs...)
		block, err := bd.DecodeTransactions(raw, []string{chainFixtures.TxHash("c")})
		assert.Nil(t, err)
		assert.Equal(t, 1, len(block.Transactions))
		assert.Equal(t, uint64(2), block.Transactions[0].TransactionIndex)
	})
	t.Run("Should report a missing receipt", func(t *testing.T) {
		raw := chainFixtures.Block(77, specs...)
		raw.Receipts = raw.Receipts[:2]
		_, err := bd.DecodeBlock(raw)

		var integrityErr *SourceIntegrityError
		assert.True(t, errors.As(err, &integrityErr))
		assert.Equal(t, uint64(77), integrityErr.BlockNumber)
		assert.Equal(t, 1, len(integrityErr.MissingReceipts))
	})
	t.Run("Should report orphan and duplicate receipts", func(t *testing.T) {
		raw := chainFixtures.Block(77, specs...)
		_, orphan := (&chainFixtures.TxSpec{Label: "orphan"}).Build(77, 9)
		raw.Receipts = append(raw.Receipts, orphan, raw.Receipts[0])
		_, err := ReconcileTransactions(raw)

		var integrityErr *SourceIntegrityError
		assert.True(t, errors.As(err, &integrityErr))
		assert.Equal(t, 1, len(integrityErr.OrphanReceipts))
		assert.Equal(t, 1, len(integrityErr.Duplicates))
		assert.Contains(t, integrityErr.Error(), "block 77")
	})
	t.Run("Should decode an empty block", func(t *testing.T) {
		block, err := bd.DecodeBlock(chainFixtures.Block(78))
		assert.Nil(t, err)
		assert.Equal(t, 0, len(block.Transactions))
	})
}
