package transformers

import (
	"math/big"

	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
)

func NewPoolV2Transformer() Transformer {
	return NewTransformer(contractStore.ContractRole_PoolV2,
		&Handler{EventName: "Swap", Produces: domainEvents.EventKind_PoolSwap, Handle: handleV2Swap},
		&Handler{EventName: "Mint", Produces: domainEvents.EventKind_Liquidity, Handle: handleV2Mint},
		&Handler{EventName: "Burn", Produces: domainEvents.EventKind_Liquidity, Handle: handleV2Burn},
		// pool shares are themselves an erc20
		&Handler{EventName: "Transfer", Produces: domainEvents.EventKind_Transfer, Handle: handleTransfer},
	)
}

func NewPoolV3Transformer() Transformer {
	return NewTransformer(contractStore.ContractRole_PoolV3,
		&Handler{EventName: "Swap", Produces: domainEvents.EventKind_PoolSwap, Handle: handleV3Swap},
		&Handler{EventName: "Mint", Produces: domainEvents.EventKind_Liquidity, Handle: handleV3Mint},
		&Handler{EventName: "Burn", Produces: domainEvents.EventKind_Liquidity, Handle: handleV3Burn},
	)
}

func getBigInts(lg *parser.DecodedLog, names ...string) ([]*big.Int, error) {
	values := make([]*big.Int, 0, len(names))
	for _, n := range names {
		v, err := lg.GetBigInt(n)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func getAddresses(lg *parser.DecodedLog, names ...string) ([]string, error) {
	values := make([]string, 0, len(names))
	for _, n := range names {
		v, err := lg.GetAddressArgument(n)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func handleV2Swap(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	addresses, err := getAddresses(lg, "sender", "to")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "amount0In", "amount1In", "amount0Out", "amount1Out")
	if err != nil {
		return nil, err
	}
	amount0In, amount1In, amount0Out, amount1Out := amounts[0], amounts[1], amounts[2], amounts[3]

	swap := &domainEvents.PoolSwap{
		Pool:      lg.Address,
		Sender:    addresses[0],
		Recipient: addresses[1],
	}
	if amount0In.Sign() > 0 {
		swap.TokenIn, swap.AmountIn = ctx.Binding.Token0, amount0In
	} else {
		swap.TokenIn, swap.AmountIn = ctx.Binding.Token1, amount1In
	}
	if amount1Out.Sign() > 0 {
		swap.TokenOut, swap.AmountOut = ctx.Binding.Token1, amount1Out
	} else {
		swap.TokenOut, swap.AmountOut = ctx.Binding.Token0, amount0Out
	}
	return singleSignal(ctx, lg, swap), nil
}

func handleV3Swap(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	addresses, err := getAddresses(lg, "sender", "recipient")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "amount0", "amount1")
	if err != nil {
		return nil, err
	}
	amount0, amount1 := amounts[0], amounts[1]

	// positive amounts flow into the pool
	swap := &domainEvents.PoolSwap{
		Pool:      lg.Address,
		Sender:    addresses[0],
		Recipient: addresses[1],
	}
	if amount0.Sign() > 0 {
		swap.TokenIn, swap.AmountIn = ctx.Binding.Token0, amount0
		swap.TokenOut, swap.AmountOut = ctx.Binding.Token1, new(big.Int).Abs(amount1)
	} else {
		swap.TokenIn, swap.AmountIn = ctx.Binding.Token1, amount1
		swap.TokenOut, swap.AmountOut = ctx.Binding.Token0, new(big.Int).Abs(amount0)
	}
	return singleSignal(ctx, lg, swap), nil
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

type liquidityChange struct {
	provider     string
	participants []string
	action       domainEvents.LiquidityAction
	liquidity    *big.Int
	amount0      *big.Int
	amount1      *big.Int
}

func liquiditySignal(ctx *HandlerContext, lg *parser.DecodedLog, change *liquidityChange) []*Signal {
	draft := &domainEvents.Liquidity{
		Pool:      lg.Address,
		Provider:  change.provider,
		Action:    change.action,
		Token0:    ctx.Binding.Token0,
		Token1:    ctx.Binding.Token1,
		Amount0:   change.amount0,
		Amount1:   change.amount1,
		Liquidity: change.liquidity,
	}
	positionAction := domainEvents.PositionAction_Increase
	if change.action == domainEvents.LiquidityAction_Remove {
		positionAction = domainEvents.PositionAction_Decrease
	}

	seen := make(map[string]bool, len(change.participants))
	positions := make([]domainEvents.DomainEvent, 0, len(change.participants))
	for _, p := range change.participants {
		if seen[p] {
			continue
		}
		seen[p] = true
		positions = append(positions, &domainEvents.Position{
			Pool:      lg.Address,
			Owner:     p,
			Action:    positionAction,
			Liquidity: copyBigInt(change.liquidity),
			Amount0:   copyBigInt(change.amount0),
			Amount1:   copyBigInt(change.amount1),
		})
	}
	return singleSignal(ctx, lg, draft, positions...)
}

func handleV2Mint(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	sender, err := lg.GetAddressArgument("sender")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "amount0", "amount1")
	if err != nil {
		return nil, err
	}
	return liquiditySignal(ctx, lg, &liquidityChange{
		provider:     sender,
		participants: []string{sender},
		action:       domainEvents.LiquidityAction_Add,
		amount0:      amounts[0],
		amount1:      amounts[1],
	}), nil
}

func handleV2Burn(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	addresses, err := getAddresses(lg, "sender", "to")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "amount0", "amount1")
	if err != nil {
		return nil, err
	}
	return liquiditySignal(ctx, lg, &liquidityChange{
		provider:     addresses[0],
		participants: []string{addresses[1]},
		action:       domainEvents.LiquidityAction_Remove,
		amount0:      amounts[0],
		amount1:      amounts[1],
	}), nil
}

func handleV3Mint(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	addresses, err := getAddresses(lg, "owner", "sender")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "amount", "amount0", "amount1")
	if err != nil {
		return nil, err
	}
	return liquiditySignal(ctx, lg, &liquidityChange{
		provider:     addresses[0],
		participants: addresses,
		action:       domainEvents.LiquidityAction_Add,
		liquidity:    amounts[0],
		amount0:      amounts[1],
		amount1:      amounts[2],
	}), nil
}

func handleV3Burn(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	owner, err := lg.GetAddressArgument("owner")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "amount", "amount0", "amount1")
	if err != nil {
		return nil, err
	}
	return liquiditySignal(ctx, lg, &liquidityChange{
		provider:     owner,
		participants: []string{owner},
		action:       domainEvents.LiquidityAction_Remove,
		liquidity:    amounts[0],
		amount0:      amounts[1],
		amount1:      amounts[2],
	}), nil
}
