package contractStore

import (
	"time"

	"github.com/Layr-Labs/sidecar-events/pkg/abis"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ContractRole selects the transformer that handles a contract's logs.
type ContractRole string

const (
	ContractRole_Token      ContractRole = "token"
	ContractRole_PoolV2     ContractRole = "pool_v2"
	ContractRole_PoolV3     ContractRole = "pool_v3"
	ContractRole_Router     ContractRole = "router"
	ContractRole_Aggregator ContractRole = "aggregator"
	ContractRole_Rewards    ContractRole = "rewards"
)

var roleBuiltinAbis = map[ContractRole]abis.BuiltinAbi{
	ContractRole_Token:      abis.BuiltinAbi_ERC20,
	ContractRole_PoolV2:     abis.BuiltinAbi_UniswapV2Pair,
	ContractRole_PoolV3:     abis.BuiltinAbi_UniswapV3Pool,
	ContractRole_Router:     abis.BuiltinAbi_UniswapV2Router,
	ContractRole_Aggregator: abis.BuiltinAbi_Aggregator,
	ContractRole_Rewards:    abis.BuiltinAbi_StakingRewards,
}

// BuiltinAbiForRole returns the ABI used for a contract that has a role but no ABI of its own.
func BuiltinAbiForRole(role ContractRole) (abis.BuiltinAbi, bool) {
	a, ok := roleBuiltinAbis[role]
	return a, ok
}

func (r ContractRole) IsValid() bool {
	_, ok := roleBuiltinAbis[r]
	return ok
}

// Contract is a catalog entry. Addresses are stored lowercased.
type Contract struct {
	ContractAddress string `gorm:"primaryKey;type:varchar(42)"`
	ContractAbi     string `gorm:"type:text"`
	// Address whose ABI is merged in, e.g. the implementation behind a proxy.
	ImplementationAddress string       `gorm:"type:varchar(42)"`
	TransformerRole       ContractRole `gorm:"type:varchar(32);index"`
	Token0                string       `gorm:"type:varchar(42)"`
	Token1                string       `gorm:"type:varchar(42)"`
	RewardToken           string       `gorm:"type:varchar(42)"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TransformerBinding ties a contract to a transformer role plus the static
// metadata the transformer needs.
type TransformerBinding struct {
	ContractAddress string
	Role            ContractRole
	Token0          string
	Token1          string
	RewardToken     string
}

type ContractStore interface {
	GetContractForAddress(address string) (*Contract, error)
	ListContracts() ([]*Contract, error)
	UpsertContract(contract *Contract) (*Contract, error)
}

// Catalog answers contract lookups during decoding and transformation.
// Implementations must be safe for concurrent reads.
type Catalog interface {
	HasContract(address string) bool
	GetAbi(address string) (*abi.ABI, bool)
	GetTransformer(address string) (*TransformerBinding, bool)
}
