package transformers

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/sidecar-events/internal/tests"
	"github.com/Layr-Labs/sidecar-events/internal/tests/chainFixtures"
	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/decoder"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/stretchr/testify/assert"
)

var (
	tokenA     = chainFixtures.Address("tokenA")
	tokenB     = chainFixtures.Address("tokenB")
	rewardTkn  = chainFixtures.Address("rewardToken")
	poolV2     = chainFixtures.Address("poolV2")
	poolV3     = chainFixtures.Address("poolV3")
	aggregator = chainFixtures.Address("aggregator")
	staking    = chainFixtures.Address("staking")
	user       = chainFixtures.Address("user")
	other      = chainFixtures.Address("other")
)

func setup(t *testing.T) (*Registry, contractStore.Catalog, *decoder.TransactionDecoder) {
	l := tests.GetTestLogger()
	catalog := contractStore.NewStaticCatalog([]*contractStore.Contract{
		{ContractAddress: tokenA, TransformerRole: contractStore.ContractRole_Token},
		{ContractAddress: poolV2, TransformerRole: contractStore.ContractRole_PoolV2, Token0: tokenA, Token1: tokenB},
		{ContractAddress: poolV3, TransformerRole: contractStore.ContractRole_PoolV3, Token0: tokenA, Token1: tokenB},
		{ContractAddress: aggregator, TransformerRole: contractStore.ContractRole_Aggregator},
		{ContractAddress: staking, TransformerRole: contractStore.ContractRole_Rewards, RewardToken: rewardTkn},
	}, l)
	r, err := NewDefaultRegistry(l)
	if err != nil {
		t.Fatal(err)
	}
	return r, catalog, decoder.NewTransactionDecoder(catalog, l)
}

func handle(t *testing.T, r *Registry, catalog contractStore.Catalog, d *decoder.TransactionDecoder, raw *ethereum.EthereumEventLog) []*Signal {
	lg, ok := d.DecodeLog(raw).(*parser.DecodedLog)
	if !ok {
		t.Fatal("log did not decode")
	}
	binding, ok := catalog.GetTransformer(lg.Address)
	if !ok {
		t.Fatal("no binding")
	}
	h, ok := r.GetHandler(binding.Role, lg.EventName)
	if !ok {
		t.Fatalf("no handler for %s/%s", binding.Role, lg.EventName)
	}
	signals, err := h.Handle(&HandlerContext{Transaction: parser.NewTransaction(), Binding: binding}, lg)
	assert.Nil(t, err)
	assert.Len(t, signals, 1)
	assert.Equal(t, h.Produces, signals[0].Draft.Kind())
	return signals
}

func Test_Registry(t *testing.T) {
	r, _, _ := setup(t)

	t.Run("Should register every builtin role", func(t *testing.T) {
		assert.Equal(t, []contractStore.ContractRole{
			contractStore.ContractRole_Aggregator,
			contractStore.ContractRole_PoolV2,
			contractStore.ContractRole_PoolV3,
			contractStore.ContractRole_Rewards,
			contractStore.ContractRole_Router,
			contractStore.ContractRole_Token,
		}, r.Roles())
	})
	t.Run("Should reject a duplicate role", func(t *testing.T) {
		err := r.Register(NewTokenTransformer())
		assert.NotNil(t, err)
	})
	t.Run("Should reject duplicate handlers", func(t *testing.T) {
		r := NewRegistry(tests.GetTestLogger())
		h := &Handler{EventName: "Transfer", Produces: domainEvents.EventKind_Transfer, Handle: handleTransfer}
		assert.NotNil(t, r.Register(NewTransformer(contractStore.ContractRole_Token, h, h)))
	})
	t.Run("Should miss unknown handlers", func(t *testing.T) {
		_, ok := r.GetHandler(contractStore.ContractRole_Token, "Approval")
		assert.False(t, ok)
		_, ok = r.GetHandler(contractStore.ContractRole("unknown"), "Transfer")
		assert.False(t, ok)

		router, ok := r.GetTransformer(contractStore.ContractRole_Router)
		assert.True(t, ok)
		assert.Len(t, router.Handlers(), 0)
	})
}

func Test_TokenTransformer(t *testing.T) {
	r, catalog, d := setup(t)

	signals := handle(t, r, catalog, d, chainFixtures.TransferLog(tokenA, user, poolV2, 100, 4))
	transfer := signals[0].Draft.(*domainEvents.Transfer)
	assert.Equal(t, tokenA, transfer.Token)
	assert.Equal(t, user, transfer.From)
	assert.Equal(t, poolV2, transfer.To)
	assert.Equal(t, big.NewInt(100), transfer.Amount)
	assert.Equal(t, domainEvents.TransferClassification_Unknown, transfer.Classification)
	assert.Equal(t, uint64(4), signals[0].LogIndex)
	assert.Equal(t, "Transfer", signals[0].SourceEvent)
}

func Test_PoolV2Transformer(t *testing.T) {
	r, catalog, d := setup(t)

	t.Run("Should draft a swap of token0 for token1", func(t *testing.T) {
		swap := handle(t, r, catalog, d, chainFixtures.V2SwapLog(poolV2, user, other, 100, 0, 0, 42, 1))[0].Draft.(*domainEvents.PoolSwap)
		assert.Equal(t, poolV2, swap.Pool)
		assert.Equal(t, user, swap.Sender)
		assert.Equal(t, other, swap.Recipient)
		assert.Equal(t, tokenA, swap.TokenIn)
		assert.Equal(t, tokenB, swap.TokenOut)
		assert.Equal(t, big.NewInt(100), swap.AmountIn)
		assert.Equal(t, big.NewInt(42), swap.AmountOut)
	})
	t.Run("Should draft a swap of token1 for token0", func(t *testing.T) {
		swap := handle(t, r, catalog, d, chainFixtures.V2SwapLog(poolV2, user, user, 0, 7, 3, 0, 1))[0].Draft.(*domainEvents.PoolSwap)
		assert.Equal(t, tokenB, swap.TokenIn)
		assert.Equal(t, tokenA, swap.TokenOut)
		assert.Equal(t, big.NewInt(7), swap.AmountIn)
		assert.Equal(t, big.NewInt(3), swap.AmountOut)
	})
	t.Run("Should expand a mint into a position", func(t *testing.T) {
		signal := handle(t, r, catalog, d, chainFixtures.V2MintLog(poolV2, user, 10, 20, 2))[0]
		liquidity := signal.Draft.(*domainEvents.Liquidity)
		assert.Equal(t, domainEvents.LiquidityAction_Add, liquidity.Action)
		assert.Equal(t, user, liquidity.Provider)
		assert.Equal(t, tokenA, liquidity.Token0)
		assert.Equal(t, big.NewInt(20), liquidity.Amount1)
		assert.Nil(t, liquidity.Liquidity)

		assert.Len(t, signal.Expansions, 1)
		position := signal.Expansions[0].(*domainEvents.Position)
		assert.Equal(t, user, position.Owner)
		assert.Equal(t, domainEvents.PositionAction_Increase, position.Action)
	})
	t.Run("Should attribute a burn position to the receiver", func(t *testing.T) {
		signal := handle(t, r, catalog, d, chainFixtures.V2BurnLog(poolV2, user, 10, 20, other, 2))[0]
		liquidity := signal.Draft.(*domainEvents.Liquidity)
		assert.Equal(t, domainEvents.LiquidityAction_Remove, liquidity.Action)
		assert.Equal(t, user, liquidity.Provider)
		position := signal.Expansions[0].(*domainEvents.Position)
		assert.Equal(t, other, position.Owner)
		assert.Equal(t, domainEvents.PositionAction_Decrease, position.Action)
	})
}

func Test_PoolV3Transformer(t *testing.T) {
	r, catalog, d := setup(t)

	t.Run("Should use the sign of amount0 for direction", func(t *testing.T) {
		swap := handle(t, r, catalog, d, chainFixtures.V3SwapLog(poolV3, user, other, 100, -42, 0))[0].Draft.(*domainEvents.PoolSwap)
		assert.Equal(t, tokenA, swap.TokenIn)
		assert.Equal(t, big.NewInt(100), swap.AmountIn)
		assert.Equal(t, tokenB, swap.TokenOut)
		assert.Equal(t, big.NewInt(42), swap.AmountOut)

		swap = handle(t, r, catalog, d, chainFixtures.V3SwapLog(poolV3, user, other, -42, 100, 0))[0].Draft.(*domainEvents.PoolSwap)
		assert.Equal(t, tokenB, swap.TokenIn)
		assert.Equal(t, big.NewInt(100), swap.AmountIn)
		assert.Equal(t, tokenA, swap.TokenOut)
		assert.Equal(t, big.NewInt(42), swap.AmountOut)
	})
	t.Run("Should expand a mint into owner and sender positions", func(t *testing.T) {
		signal := handle(t, r, catalog, d, chainFixtures.V3MintLog(poolV3, other, user, 5000, 10, 20, 1))[0]
		liquidity := signal.Draft.(*domainEvents.Liquidity)
		assert.Equal(t, user, liquidity.Provider)
		assert.Equal(t, big.NewInt(5000), liquidity.Liquidity)
		assert.Len(t, signal.Expansions, 2)
		assert.Equal(t, user, signal.Expansions[0].(*domainEvents.Position).Owner)
		assert.Equal(t, other, signal.Expansions[1].(*domainEvents.Position).Owner)
	})
	t.Run("Should give every position its own amounts", func(t *testing.T) {
		signal := handle(t, r, catalog, d, chainFixtures.V3MintLog(poolV3, other, user, 5000, 10, 20, 1))[0]
		liquidity := signal.Draft.(*domainEvents.Liquidity)
		first := signal.Expansions[0].(*domainEvents.Position)
		second := signal.Expansions[1].(*domainEvents.Position)

		first.Liquidity.SetInt64(1)
		first.Amount0.SetInt64(1)
		assert.Equal(t, big.NewInt(5000), liquidity.Liquidity)
		assert.Equal(t, big.NewInt(10), liquidity.Amount0)
		assert.Equal(t, big.NewInt(5000), second.Liquidity)
		assert.Equal(t, big.NewInt(10), second.Amount0)
	})
	t.Run("Should not duplicate a position when sender is the owner", func(t *testing.T) {
		signal := handle(t, r, catalog, d, chainFixtures.V3MintLog(poolV3, user, user, 5000, 10, 20, 1))[0]
		assert.Len(t, signal.Expansions, 1)
	})
	t.Run("Should draft a burn", func(t *testing.T) {
		signal := handle(t, r, catalog, d, chainFixtures.V3BurnLog(poolV3, user, 5000, 10, 20, 1))[0]
		assert.Equal(t, domainEvents.LiquidityAction_Remove, signal.Draft.(*domainEvents.Liquidity).Action)
		assert.Equal(t, big.NewInt(5000), signal.Expansions[0].(*domainEvents.Position).Liquidity)
	})
}

func Test_AggregatorAndRewards(t *testing.T) {
	r, catalog, d := setup(t)

	t.Run("Should draft a trade from Swapped", func(t *testing.T) {
		trade := handle(t, r, catalog, d, chainFixtures.SwappedLog(aggregator, user, tokenA, tokenB, user, 100, 90, 5))[0].Draft.(*domainEvents.Trade)
		assert.Equal(t, user, trade.Trader)
		assert.Equal(t, aggregator, trade.Router)
		assert.Equal(t, tokenA, trade.TokenIn)
		assert.Equal(t, tokenB, trade.TokenOut)
		assert.Equal(t, big.NewInt(100), trade.AmountIn)
		assert.Equal(t, big.NewInt(90), trade.AmountOut)
	})
	t.Run("Should draft a reward in the bound reward token", func(t *testing.T) {
		reward := handle(t, r, catalog, d, chainFixtures.RewardPaidLog(staking, user, 77, 3))[0].Draft.(*domainEvents.Reward)
		assert.Equal(t, staking, reward.Contract)
		assert.Equal(t, user, reward.Recipient)
		assert.Equal(t, rewardTkn, reward.Token)
		assert.Equal(t, big.NewInt(77), reward.Amount)
	})
	t.Run("Should fail on a log missing its arguments", func(t *testing.T) {
		binding, _ := catalog.GetTransformer(staking)
		h, _ := r.GetHandler(contractStore.ContractRole_Rewards, "RewardPaid")
		_, err := h.Handle(&HandlerContext{Binding: binding}, &parser.DecodedLog{Address: staking, EventName: "RewardPaid"})
		assert.NotNil(t, err)
	})
}

func Test_PoolV2ShareTransfer(t *testing.T) {
	r, catalog, d := setup(t)

	transfer := handle(t, r, catalog, d, chainFixtures.TransferLog(poolV2, chainFixtures.ZeroAddress, user, 14, 0))[0].Draft.(*domainEvents.Transfer)
	assert.Equal(t, poolV2, transfer.Token)
	assert.Equal(t, chainFixtures.ZeroAddress, transfer.From)
	assert.Equal(t, big.NewInt(14), transfer.Amount)
}
