package transformers

import (
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
)

func NewTokenTransformer() Transformer {
	return NewTransformer(contractStore.ContractRole_Token, &Handler{
		EventName: "Transfer",
		Produces:  domainEvents.EventKind_Transfer,
		Handle:    handleTransfer,
	})
}

func handleTransfer(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	from, err := lg.GetAddressArgument("from")
	if err != nil {
		return nil, err
	}
	to, err := lg.GetAddressArgument("to")
	if err != nil {
		return nil, err
	}
	amount, err := lg.GetBigInt("value")
	if err != nil {
		return nil, err
	}
	return singleSignal(ctx, lg, &domainEvents.Transfer{
		Token:          lg.Address,
		From:           from,
		To:             to,
		Amount:         amount,
		Classification: domainEvents.TransferClassification_Unknown,
	}), nil
}
