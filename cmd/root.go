package cmd

import (
	"os"
	"strings"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "sidecar-events",
	Short: "Decode EVM blocks and transform contract logs into domain events",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP(config.ChainKey, "c", "mainnet", "The chain to use (mainnet, holesky, sepolia)")

	rootCmd.PersistentFlags().String("ethereum.rpc-url", "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().Int("ethereum.requests-per-second", 0, `Maximum RPC requests per second (0 = unlimited)`)
	rootCmd.PersistentFlags().Int("ethereum.batch-size", 100, `Number of receipt requests per batch call`)
	rootCmd.PersistentFlags().Int("ethereum.max-fetch-retries", 5, `Additional attempts when fetching a block fails`)

	rootCmd.PersistentFlags().String("database.type", "postgres", `"postgres" or "sqlite"`)
	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "sidecar", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String("database.db-name", "sidecar_events", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String("database.schema-name", "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String("database.ssl-mode", "disable", `PostgreSQL sslmode`)
	rootCmd.PersistentFlags().String("database.ssl-cert", "", `PostgreSQL client certificate`)
	rootCmd.PersistentFlags().String("database.ssl-key", "", `PostgreSQL client key`)
	rootCmd.PersistentFlags().String("database.ssl-root-cert", "", `PostgreSQL root certificate`)
	rootCmd.PersistentFlags().String("database.sqlite-path", "", `Path to the sqlite database file`)

	rootCmd.PersistentFlags().Int(config.WorkersCount, 4, `Number of concurrent workers`)
	rootCmd.PersistentFlags().Duration("workers.poll-interval", 0, `Sleep between polls of an empty queue (default 1s)`)
	rootCmd.PersistentFlags().Duration("workers.job-timeout", 0, `Deadline for a single job (default 5m)`)
	rootCmd.PersistentFlags().Duration("workers.stale-after", 0, `Requeue processing jobs older than this (default 15m)`)
	rootCmd.PersistentFlags().Duration("workers.reap-interval", 0, `How often stale jobs are requeued (default 1m)`)
	rootCmd.PersistentFlags().Int("workers.max-retries", 3, `Attempts before a job is marked failed`)
	rootCmd.PersistentFlags().Int("workers.default-priority", 0, `Priority for jobs created without one`)

	rootCmd.PersistentFlags().String("transform.rules-file", "", `Path to a transformation rules file (default: built-in rules)`)

	rootCmd.PersistentFlags().Bool("datadog.statsd.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String("datadog.statsd.url", "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64("datadog.statsd.sample-rate", 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool("prometheus.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int("prometheus.port", 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(reprocessFailedCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(contractsCmd)
	rootCmd.AddCommand(runVersionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindCommandFlags binds a subcommand's local flags the same way the root binds its persistent ones.
func bindCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		if err := viper.BindPFlag(key, f); err != nil {
			cmd.PrintErrf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(key); err != nil {
			cmd.PrintErrf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
