package cmd

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/pkg/processor"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Process a block range in the foreground without going through the job queue",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		l := newLogger(cfg)

		startBlock := viper.GetUint64(config.JobStartBlock)
		endBlock := viper.GetUint64(config.JobEndBlock)
		if endBlock < startBlock {
			l.Sugar().Fatalw("End block is before start block",
				zap.Uint64("startBlock", startBlock),
				zap.Uint64("endBlock", endBlock),
			)
		}

		s, err := newProcessingServices(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer s.close()

		bar := progressbar.Default(int64(endBlock-startBlock+1), fmt.Sprintf("blocks %d-%d", startBlock, endBlock))
		var events, failed int
		_, err = s.processor.ProcessBlockRange(context.Background(), startBlock, endBlock, func(result *processor.BlockResult) {
			events += result.Events
			failed += result.Failed
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		if err != nil {
			l.Sugar().Fatalw("Backfill failed", zap.Error(err))
		}
		l.Sugar().Infow("Backfill complete",
			zap.Uint64("startBlock", startBlock),
			zap.Uint64("endBlock", endBlock),
			zap.Int("events", events),
			zap.Int("failedTransactions", failed),
		)
	},
}

func init() {
	backfillCmd.Flags().Uint64("job.start-block", 0, `First block to process`)
	backfillCmd.Flags().Uint64("job.end-block", 0, `Last block to process (inclusive)`)
}
