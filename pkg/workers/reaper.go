package workers

import (
	"context"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/metrics"
	"github.com/Layr-Labs/sidecar-events/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"go.uber.org/zap"
)

// Reaper returns jobs whose worker stopped reporting to the queue.
type Reaper struct {
	jobStore     jobStore.JobStore
	metricsSink  *metrics.MetricsSink
	globalConfig *config.Config
	logger       *zap.Logger
}

func NewReaper(js jobStore.JobStore, ms *metrics.MetricsSink, gc *config.Config, l *zap.Logger) *Reaper {
	return &Reaper{
		jobStore:     js,
		metricsSink:  ms,
		globalConfig: gc,
		logger:       l,
	}
}

// ReapOnce requeues jobs that have been processing for longer than the
// stale threshold at now.
func (r *Reaper) ReapOnce(now time.Time) (int64, error) {
	count, err := r.jobStore.RequeueStaleJobs(now.Add(-r.globalConfig.WorkerConfig.StaleAfter))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		_ = r.metricsSink.Incr(metricsTypes.Metric_Incr_JobsRequeued, nil, float64(count))
		r.logger.Sugar().Warnw("Requeued stale jobs", zap.Int64("count", count))
	}
	return count, nil
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.globalConfig.WorkerConfig.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ReapOnce(time.Now().UTC()); err != nil {
				r.logger.Sugar().Errorw("Failed to requeue stale jobs", zap.Error(err))
			}
		}
	}
}
