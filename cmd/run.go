package cmd

import (
	"context"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/metrics/prometheus"
	"github.com/Layr-Labs/sidecar-events/internal/shutdown"
	"github.com/Layr-Labs/sidecar-events/pkg/workers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the processing workers",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		l := newLogger(cfg)

		s, err := newProcessingServices(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer s.close()

		ctx, cancel := context.WithCancel(context.Background())

		if s.prometheus != nil {
			ps := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, s.prometheus.Registry(), l)
			if err := ps.Start(ctx); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		pool := workers.NewWorkerPool(s.jobStore, s.processor, s.eventBus, s.metricsSink, cfg, l)
		reaper := workers.NewReaper(s.jobStore, s.metricsSink, cfg, l)

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return pool.Run(gCtx)
		})
		g.Go(func() error {
			return reaper.Run(gCtx)
		})

		l.Sugar().Infow("Started sidecar-events",
			zap.Int("workers", cfg.WorkerConfig.Count),
			zap.String("chain", string(cfg.Chain)),
		)

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		done := make(chan bool)
		go shutdown.ListenForShutdown(gracefulShutdown, done, cancel, time.Second*5, l)

		if err := g.Wait(); err != nil {
			l.Sugar().Errorw("Workers stopped with error", zap.Error(err))
		}
		if ctx.Err() == nil {
			cancel()
			return
		}
		<-done
	},
}
