package postgresContractStore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/postgres/helpers"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresContractStore struct {
	Db           *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewPostgresContractStore(db *gorm.DB, l *zap.Logger, cfg *config.Config) *PostgresContractStore {
	cs := &PostgresContractStore{
		Db:           db,
		Logger:       l,
		globalConfig: cfg,
	}
	return cs
}

func (s *PostgresContractStore) GetContractForAddress(address string) (*contractStore.Contract, error) {
	var contract *contractStore.Contract

	result := s.Db.First(&contract, "contract_address = ?", strings.ToLower(address))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			s.Logger.Sugar().Debugf("Contract not found in store '%s'", address)
			return nil, nil
		}
		return nil, result.Error
	}

	return contract, nil
}

func (s *PostgresContractStore) ListContracts() ([]*contractStore.Contract, error) {
	var contracts []*contractStore.Contract
	result := s.Db.Model(&contractStore.Contract{}).Order("contract_address asc").Find(&contracts)
	if result.Error != nil {
		return nil, result.Error
	}
	return contracts, nil
}

func normalizeContract(contract *contractStore.Contract) error {
	contract.ContractAddress = strings.ToLower(contract.ContractAddress)
	contract.ImplementationAddress = strings.ToLower(contract.ImplementationAddress)
	contract.Token0 = strings.ToLower(contract.Token0)
	contract.Token1 = strings.ToLower(contract.Token1)
	contract.RewardToken = strings.ToLower(contract.RewardToken)

	if contract.ContractAddress == "" {
		return errors.New("contract address is required")
	}
	if contract.TransformerRole != "" && !contract.TransformerRole.IsValid() {
		return fmt.Errorf("contract '%s' has unknown transformer role '%s'", contract.ContractAddress, contract.TransformerRole)
	}
	return nil
}

func upsertContract(tx *gorm.DB, contract *contractStore.Contract) error {
	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"contract_abi",
			"implementation_address",
			"transformer_role",
			"token0",
			"token1",
			"reward_token",
			"updated_at",
		}),
	}).Create(contract)
	return res.Error
}

func (s *PostgresContractStore) UpsertContract(contract *contractStore.Contract) (*contractStore.Contract, error) {
	if err := normalizeContract(contract); err != nil {
		return nil, err
	}
	return helpers.RunInTransaction(s.Db, nil, func(tx *gorm.DB) (*contractStore.Contract, error) {
		if err := upsertContract(tx, contract); err != nil {
			return nil, err
		}
		var stored *contractStore.Contract
		res := tx.First(&stored, "contract_address = ?", contract.ContractAddress)
		if res.Error != nil {
			return nil, res.Error
		}
		return stored, nil
	})
}

// UpsertContracts stores every contract or none of them.
func (s *PostgresContractStore) UpsertContracts(contracts []*contractStore.Contract) (int, error) {
	for _, c := range contracts {
		if err := normalizeContract(c); err != nil {
			return 0, err
		}
	}
	return helpers.RunInTransaction(s.Db, nil, func(tx *gorm.DB) (int, error) {
		for _, c := range contracts {
			if err := upsertContract(tx, c); err != nil {
				return 0, fmt.Errorf("failed to upsert contract '%s': %w", c.ContractAddress, err)
			}
		}
		return len(contracts), nil
	})
}

// LoadContractsFromFile reads a {"contracts": [...]} document. Keys follow
// the snake_case column names.
func LoadContractsFromFile(path string) ([]*contractStore.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contracts file: %w", err)
	}
	return ParseContracts(data)
}

func ParseContracts(data []byte) ([]*contractStore.Contract, error) {
	var raw struct {
		Contracts []struct {
			ContractAddress       string          `json:"contract_address"`
			ContractAbi           json.RawMessage `json:"contract_abi"`
			ImplementationAddress string          `json:"implementation_address"`
			TransformerRole       string          `json:"transformer_role"`
			Token0                string          `json:"token0"`
			Token1                string          `json:"token1"`
			RewardToken           string          `json:"reward_token"`
		} `json:"contracts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse contracts file: %w", err)
	}
	contracts := make([]*contractStore.Contract, 0, len(raw.Contracts))
	for _, c := range raw.Contracts {
		abiJson := ""
		if len(c.ContractAbi) > 0 && string(c.ContractAbi) != "null" {
			// ABIs may be given inline as an array or as an encoded string
			var asString string
			if err := json.Unmarshal(c.ContractAbi, &asString); err == nil {
				abiJson = asString
			} else {
				abiJson = string(c.ContractAbi)
			}
		}
		contracts = append(contracts, &contractStore.Contract{
			ContractAddress:       c.ContractAddress,
			ContractAbi:           abiJson,
			ImplementationAddress: c.ImplementationAddress,
			TransformerRole:       contractStore.ContractRole(c.TransformerRole),
			Token0:                c.Token0,
			Token1:                c.Token1,
			RewardToken:           c.RewardToken,
		})
	}
	return contracts, nil
}
