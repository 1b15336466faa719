package cmd

import (
	"strconv"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var reprocessFailedCmd = &cobra.Command{
	Use:   "reprocess-failed",
	Short: "Enqueue a job that resets failed work so it is processed again",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		l := newLogger(cfg)

		payload, err := reprocessPayloadFromFlags()
		if err != nil {
			l.Sugar().Fatalw("Invalid flags", zap.Error(err))
		}
		job, err := jobStore.NewReprocessFailedJob(payload, jobOptions(cfg))
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
		l.Sugar().Infow("Enqueued reprocess job",
			zap.Uint64("jobId", created.Id),
			zap.Uint64s("blockNumbers", payload.BlockNumbers),
			zap.Strings("transactionHashes", payload.TransactionHashes),
			zap.Uint64s("jobIds", payload.JobIds),
		)
	},
}

func init() {
	reprocessFailedCmd.Flags().String("job.block-numbers", "", `Comma separated blocks whose failed transactions are reset`)
	reprocessFailedCmd.Flags().String("job.transaction-hashes", "", `Comma separated failed transactions to reset`)
	reprocessFailedCmd.Flags().String("job.ids", "", `Comma separated failed job ids to reset`)
	reprocessFailedCmd.Flags().Int(config.JobPriority, -1, `Job priority (default: workers.default-priority)`)
}

func parseUint64List(value string) ([]uint64, error) {
	items := config.ParseCommaList(value)
	values := make([]uint64, 0, len(items))
	for _, item := range items {
		v, err := strconv.ParseUint(item, 10, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func reprocessPayloadFromFlags() (*jobStore.ReprocessFailedJobPayload, error) {
	blockNumbers, err := parseUint64List(viper.GetString(config.JobBlockNumbers))
	if err != nil {
		return nil, err
	}
	jobIds, err := parseUint64List(viper.GetString(config.JobIds))
	if err != nil {
		return nil, err
	}
	return &jobStore.ReprocessFailedJobPayload{
		BlockNumbers:      blockNumbers,
		TransactionHashes: config.ParseCommaList(viper.GetString(config.JobTransactionHashes)),
		JobIds:            jobIds,
	}, nil
}
