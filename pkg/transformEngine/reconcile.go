package transformEngine

import (
	"math/big"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/utils"
)

type swapSides struct {
	swap    *domainEvents.PoolSwap
	inUsed  bool
	outUsed bool
}

// reconcileTransfers classifies every transfer, in log order, against the
// other events of the transaction. Each swap side and each reward explains at
// most one transfer. Unmatched transfers stay unknown.
func (s *transformState) reconcileTransfers() {
	sides := make([]*swapSides, 0, len(s.swaps))
	for _, sw := range s.swaps {
		sides = append(sides, &swapSides{swap: sw})
	}
	rewardUsed := make([]bool, len(s.rewards))

	for _, t := range s.transfers {
		if matchSwap(t, sides) {
			continue
		}
		if s.matchReward(t, rewardUsed) {
			continue
		}
		switch {
		case utils.IsNullAddress(t.From):
			t.Classification = domainEvents.TransferClassification_Mint
			s.attachLiquidityParent(t, domainEvents.LiquidityAction_Add)
		case utils.IsNullAddress(t.To):
			t.Classification = domainEvents.TransferClassification_Burn
			s.attachLiquidityParent(t, domainEvents.LiquidityAction_Remove)
		default:
			t.Classification = domainEvents.TransferClassification_Unknown
		}
	}
}

func sameAmount(a, b *big.Int) bool {
	return a != nil && b != nil && a.Cmp(b) == 0
}

// sameToken treats an unknown token on the swap side as a wildcard.
func sameToken(swapToken, transferToken string) bool {
	return swapToken == "" || utils.AreAddressesEqual(swapToken, transferToken)
}

func matchSwap(t *domainEvents.Transfer, sides []*swapSides) bool {
	for _, side := range sides {
		sw := side.swap
		if !side.inUsed && sameAmount(sw.AmountIn, t.Amount) && sameToken(sw.TokenIn, t.Token) {
			side.inUsed = true
		} else if !side.outUsed && sameAmount(sw.AmountOut, t.Amount) && sameToken(sw.TokenOut, t.Token) {
			side.outUsed = true
		} else {
			continue
		}
		t.Classification = domainEvents.TransferClassification_Swap
		t.ParentId = sw.ContentId
		t.ParentType = domainEvents.EventKind_PoolSwap
		return true
	}
	return false
}

func (s *transformState) matchReward(t *domainEvents.Transfer, used []bool) bool {
	for i, r := range s.rewards {
		if used[i] || !sameAmount(r.Amount, t.Amount) || !sameToken(r.Token, t.Token) {
			continue
		}
		used[i] = true
		t.Classification = domainEvents.TransferClassification_Reward
		t.ParentId = r.ContentId
		t.ParentType = domainEvents.EventKind_Reward
		return true
	}
	return false
}

// attachLiquidityParent links a mint or burn of pool shares to the
// liquidity change of that pool.
func (s *transformState) attachLiquidityParent(t *domainEvents.Transfer, action domainEvents.LiquidityAction) {
	for _, l := range s.liquidity {
		if l.Action == action && utils.AreAddressesEqual(l.Pool, t.Token) {
			t.ParentId = l.ContentId
			t.ParentType = domainEvents.EventKind_Liquidity
			return
		}
	}
}
