package transformers

import (
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
)

func NewRewardsTransformer() Transformer {
	return NewTransformer(contractStore.ContractRole_Rewards, &Handler{
		EventName: "RewardPaid",
		Produces:  domainEvents.EventKind_Reward,
		Handle:    handleRewardPaid,
	})
}

func handleRewardPaid(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error) {
	user, err := lg.GetAddressArgument("user")
	if err != nil {
		return nil, err
	}
	amount, err := lg.GetBigInt("reward")
	if err != nil {
		return nil, err
	}
	return singleSignal(ctx, lg, &domainEvents.Reward{
		Contract:  lg.Address,
		Recipient: user,
		Token:     ctx.Binding.RewardToken,
		Amount:    amount,
	}), nil
}
