package cmd

import (
	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore/postgresContractStore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const contractsFile = "contracts.file"

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Manage the contract catalog",
}

var contractsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Upsert contracts and their transformer bindings from a json file",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		l := newLogger(cfg)

		path := viper.GetString(contractsFile)
		if path == "" {
			l.Sugar().Fatal("--contracts.file is required")
		}
		contracts, err := postgresContractStore.LoadContractsFromFile(path)
		if err != nil {
			l.Sugar().Fatalw("Failed to read contracts file", zap.String("path", path), zap.Error(err))
		}

		s, err := newStoreServices(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer s.close()

		count, err := s.contractStore.UpsertContracts(contracts)
		if err != nil {
			l.Sugar().Fatalw("Failed to load contracts", zap.Error(err))
		}
		l.Sugar().Infow("Loaded contracts", zap.Int("count", count), zap.String("path", path))
	},
}

func init() {
	contractsLoadCmd.Flags().String(contractsFile, "", `Path to a json array of contracts`)
	contractsCmd.AddCommand(contractsLoadCmd)
}
