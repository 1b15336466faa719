package contractStore

import (
	"strings"
	"sync"

	"github.com/Layr-Labs/sidecar-events/pkg/abis"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type catalogEntry struct {
	abi     *abi.ABI
	binding *TransformerBinding
}

// CachedCatalog is an in-memory Catalog snapshot of a ContractStore.
type CachedCatalog struct {
	store  ContractStore
	logger *zap.Logger

	lock    sync.RWMutex
	entries map[string]*catalogEntry
}

func NewCachedCatalog(store ContractStore, l *zap.Logger) *CachedCatalog {
	return &CachedCatalog{
		store:   store,
		logger:  l,
		entries: make(map[string]*catalogEntry),
	}
}

// NewStaticCatalog builds a catalog from a fixed set of contracts.
func NewStaticCatalog(contracts []*Contract, l *zap.Logger) *CachedCatalog {
	c := NewCachedCatalog(nil, l)
	c.replaceEntries(contracts)
	return c
}

// Load replaces the snapshot with the current contents of the store.
func (c *CachedCatalog) Load() error {
	if c.store == nil {
		return xerrors.New("catalog has no backing contract store")
	}
	contracts, err := c.store.ListContracts()
	if err != nil {
		return xerrors.Errorf("failed to list contracts: %w", err)
	}
	c.replaceEntries(contracts)
	c.logger.Sugar().Infow("Loaded contract catalog", zap.Int("contracts", len(contracts)))
	return nil
}

func (c *CachedCatalog) replaceEntries(contracts []*Contract) {
	byAddress := make(map[string]*Contract, len(contracts))
	for _, contract := range contracts {
		byAddress[strings.ToLower(contract.ContractAddress)] = contract
	}

	entries := make(map[string]*catalogEntry, len(contracts))
	for address, contract := range byAddress {
		entries[address] = c.buildEntry(address, contract, byAddress)
	}

	c.lock.Lock()
	c.entries = entries
	c.lock.Unlock()
}

func (c *CachedCatalog) buildEntry(address string, contract *Contract, byAddress map[string]*Contract) *catalogEntry {
	entry := &catalogEntry{}

	if contract.TransformerRole != "" {
		if contract.TransformerRole.IsValid() {
			entry.binding = &TransformerBinding{
				ContractAddress: address,
				Role:            contract.TransformerRole,
				Token0:          strings.ToLower(contract.Token0),
				Token1:          strings.ToLower(contract.Token1),
				RewardToken:     strings.ToLower(contract.RewardToken),
			}
		} else {
			c.logger.Sugar().Warnw("Ignoring unknown transformer role",
				zap.String("contractAddress", address),
				zap.String("role", string(contract.TransformerRole)),
			)
		}
	}

	implementationAbi := ""
	if impl, ok := byAddress[strings.ToLower(contract.ImplementationAddress)]; ok && contract.ImplementationAddress != "" {
		implementationAbi = impl.ContractAbi
	}
	abiJson := abis.CombineAbis(implementationAbi, contract.ContractAbi)

	if abiJson == "[]" && entry.binding != nil {
		if builtin, ok := BuiltinAbiForRole(entry.binding.Role); ok {
			a, err := abis.GetBuiltinAbi(builtin)
			if err == nil {
				entry.abi = a
			}
		}
		return entry
	}
	if abiJson == "[]" {
		return entry
	}

	a, err := abis.ParseAbiJson(abiJson)
	if err != nil {
		c.logger.Sugar().Warnw("Failed to parse contract abi, logs will stay encoded",
			zap.String("contractAddress", address),
			zap.Error(err),
		)
		return entry
	}
	entry.abi = a
	return entry
}

func (c *CachedCatalog) get(address string) (*catalogEntry, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	e, ok := c.entries[strings.ToLower(address)]
	return e, ok
}

func (c *CachedCatalog) HasContract(address string) bool {
	_, ok := c.get(address)
	return ok
}

func (c *CachedCatalog) GetAbi(address string) (*abi.ABI, bool) {
	e, ok := c.get(address)
	if !ok || e.abi == nil {
		return nil, false
	}
	return e.abi, true
}

func (c *CachedCatalog) GetTransformer(address string) (*TransformerBinding, bool) {
	e, ok := c.get(address)
	if !ok || e.binding == nil {
		return nil, false
	}
	return e.binding, true
}
