package cmd

import (
	"fmt"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Create a processing job for a block, block range or set of transactions",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		l := newLogger(cfg)

		job, err := buildJobFromFlags(cfg)
		if err != nil {
			l.Sugar().Fatalw("Invalid job", zap.Error(err))
		}

		s, err := newStoreServices(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer s.close()

		created, err := s.jobStore.CreateJob(job)
		if err != nil {
			l.Sugar().Fatalw("Failed to create job", zap.Error(err))
		}
		l.Sugar().Infow("Enqueued job",
			zap.Uint64("jobId", created.Id),
			zap.String("jobType", string(created.JobType)),
			zap.Int("priority", created.Priority),
		)
	},
}

func init() {
	enqueueCmd.Flags().Uint64("job.block-number", 0, `Block to process; combine with --job.transaction-hashes to process a subset`)
	enqueueCmd.Flags().Uint64("job.start-block", 0, `First block of a range`)
	enqueueCmd.Flags().Uint64("job.end-block", 0, `Last block of a range (inclusive)`)
	enqueueCmd.Flags().String("job.transaction-hashes", "", `Comma separated transaction hashes`)
	enqueueCmd.Flags().Int(config.JobPriority, -1, `Job priority (default: workers.default-priority)`)
}

func jobOptions(cfg *config.Config) *jobStore.JobOptions {
	priority := viper.GetInt(config.JobPriority)
	if priority < 0 {
		priority = cfg.WorkerConfig.DefaultPriority
	}
	return &jobStore.JobOptions{
		Priority:   priority,
		MaxRetries: cfg.WorkerConfig.MaxRetries,
	}
}

func buildJobFromFlags(cfg *config.Config) (*jobStore.ProcessingJob, error) {
	opts := jobOptions(cfg)
	blockNumber := viper.GetUint64(config.JobBlockNumber)
	startBlock := viper.GetUint64(config.JobStartBlock)
	endBlock := viper.GetUint64(config.JobEndBlock)
	txHashes := config.ParseCommaList(viper.GetString(config.JobTransactionHashes))

	switch {
	case len(txHashes) > 0:
		if blockNumber == 0 {
			return nil, fmt.Errorf("--job.block-number is required with --job.transaction-hashes")
		}
		return jobStore.NewTransactionsJob(blockNumber, txHashes, opts)
	case startBlock > 0 || endBlock > 0:
		return jobStore.NewBlockRangeJob(startBlock, endBlock, opts)
	case blockNumber > 0:
		return jobStore.NewBlockJob(blockNumber, opts)
	}
	return nil, fmt.Errorf("one of --job.block-number or --job.start-block/--job.end-block is required")
}
