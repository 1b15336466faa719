package cmd

import (
	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Database maintenance commands",
}

var runDatabaseMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()
		l := newLogger(cfg)

		s, err := newStoreServices(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to migrate database", zap.Error(err))
		}
		defer s.close()

		l.Sugar().Infow("Database migrated", zap.String("type", string(cfg.DatabaseConfig.Type)))
	},
}

func init() {
	runDatabaseCmd.AddCommand(runDatabaseMigrateCmd)
}
