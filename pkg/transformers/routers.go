package transformers

import (
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
)

// NewRouterTransformer registers the router role so pool swaps routed
// through it aggregate into a Trade. Routers emit no events of their own.
func NewRouterTransformer() Transformer {
	return NewTransformer(contractStore.ContractRole_Router)
}

func NewAggregatorTransformer() Transformer {
	return NewTransformer(contractStore.ContractRole_Aggregator, &Handler{
		EventName: "Swapped",
		Produces:  domainEvents.EventKind_Trade,
		Handle:    handleSwapped,
	})
}

func handleSwapped(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	addresses, err := getAddresses(lg, "sender", "srcToken", "dstToken")
	if err != nil {
		return nil, err
	}
	amounts, err := getBigInts(lg, "spentAmount", "returnAmount")
	if err != nil {
		return nil, err
	}
	return singleSignal(ctx, lg, &domainEvents.Trade{
		Trader:    addresses[0],
		Router:    lg.Address,
		TokenIn:   addresses[1],
		TokenOut:  addresses[2],
		AmountIn:  amounts[0],
		AmountOut: amounts[1],
		Pools:     make([]string, 0),
	}), nil
}
