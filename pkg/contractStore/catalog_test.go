package contractStore

import (
	"testing"

	"github.com/Layr-Labs/sidecar-events/internal/logger"
	"github.com/Layr-Labs/sidecar-events/pkg/abis"
	"github.com/stretchr/testify/assert"
)

func Test_CachedCatalog(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	erc20Abi, _ := abis.GetBuiltinAbiJson(abis.BuiltinAbi_ERC20)
	rewardsAbi, _ := abis.GetBuiltinAbiJson(abis.BuiltinAbi_StakingRewards)

	catalog := NewStaticCatalog([]*Contract{
		{ContractAddress: "0xTOKEN", TransformerRole: ContractRole_Token},
		{ContractAddress: "0xpool", TransformerRole: ContractRole_PoolV2, Token0: "0xAAA", Token1: "0xBBB"},
		{ContractAddress: "0xabiOnly", ContractAbi: erc20Abi},
		{ContractAddress: "0xproxy", ContractAbi: erc20Abi, ImplementationAddress: "0ximpl"},
		{ContractAddress: "0ximpl", ContractAbi: rewardsAbi},
		{ContractAddress: "0xbroken", ContractAbi: `[{"type":`},
		{ContractAddress: "0xweird", TransformerRole: "oracle"},
	}, l)

	t.Run("Should look up addresses case-insensitively", func(t *testing.T) {
		assert.True(t, catalog.HasContract("0xtoken"))
		assert.True(t, catalog.HasContract("0xPOOL"))
		assert.False(t, catalog.HasContract("0xunknown"))
	})
	t.Run("Should fall back to the builtin abi for the role", func(t *testing.T) {
		a, ok := catalog.GetAbi("0xtoken")
		assert.True(t, ok)
		assert.Contains(t, a.Events, "Transfer")
	})
	t.Run("Should expose binding metadata lowercased", func(t *testing.T) {
		b, ok := catalog.GetTransformer("0xpool")
		assert.True(t, ok)
		assert.Equal(t, ContractRole_PoolV2, b.Role)
		assert.Equal(t, "0xaaa", b.Token0)
		assert.Equal(t, "0xbbb", b.Token1)
	})
	t.Run("Should not bind contracts without a role", func(t *testing.T) {
		_, ok := catalog.GetTransformer("0xabionly")
		assert.False(t, ok)
		_, ok = catalog.GetAbi("0xabionly")
		assert.True(t, ok)
	})
	t.Run("Should merge the implementation abi", func(t *testing.T) {
		a, ok := catalog.GetAbi("0xproxy")
		assert.True(t, ok)
		assert.Contains(t, a.Events, "Transfer")
		assert.Contains(t, a.Events, "RewardPaid")
	})
	t.Run("Should keep contracts with unparseable abis without an abi", func(t *testing.T) {
		assert.True(t, catalog.HasContract("0xbroken"))
		_, ok := catalog.GetAbi("0xbroken")
		assert.False(t, ok)
	})
	t.Run("Should ignore unknown roles", func(t *testing.T) {
		_, ok := catalog.GetTransformer("0xweird")
		assert.False(t, ok)
	})
}
