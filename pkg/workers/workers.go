// Package workers runs processing jobs concurrently. Workers coordinate only
// through the job store's atomic claim.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/metrics"
	"github.com/Layr-Labs/sidecar-events/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type JobProcessor interface {
	ProcessJob(ctx context.Context, job *jobStore.ProcessingJob) error
}

type WorkerPool struct {
	jobStore     jobStore.JobStore
	processor    JobProcessor
	eventBus     eventBusTypes.IEventBus
	metricsSink  *metrics.MetricsSink
	globalConfig *config.Config
	logger       *zap.Logger
}

func NewWorkerPool(
	js jobStore.JobStore,
	p JobProcessor,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
	gc *config.Config,
	l *zap.Logger,
) *WorkerPool {
	return &WorkerPool{
		jobStore:     js,
		processor:    p,
		eventBus:     eb,
		metricsSink:  ms,
		globalConfig: gc,
		logger:       l,
	}
}

func NewWorkerId() string {
	return fmt.Sprintf("worker-%s", uuid.New().String())
}

// Run starts the configured number of workers and blocks until ctx is done.
func (wp *WorkerPool) Run(ctx context.Context) error {
	count := wp.globalConfig.WorkerConfig.Count
	if count < 1 {
		count = 1
	}
	wp.logger.Sugar().Infow("Starting worker pool", zap.Int("workers", count))

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		workerId := NewWorkerId()
		g.Go(func() error {
			return wp.runWorker(gCtx, workerId)
		})
	}
	err := g.Wait()
	wp.logger.Sugar().Infow("Worker pool stopped")
	return err
}

func (wp *WorkerPool) runWorker(ctx context.Context, workerId string) error {
	wp.logger.Sugar().Debugw("Worker started", zap.String("workerId", workerId))
	for {
		if ctx.Err() != nil {
			return nil
		}
		worked, err := wp.RunOnce(ctx, workerId)
		if err != nil {
			wp.logger.Sugar().Errorw("Worker iteration failed",
				zap.String("workerId", workerId),
				zap.Error(err),
			)
		}
		if worked && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wp.globalConfig.WorkerConfig.PollInterval):
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was claimed.
func (wp *WorkerPool) RunOnce(ctx context.Context, workerId string) (bool, error) {
	job, err := wp.jobStore.ClaimNext(ctx, workerId)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	jobLabels := []metricsTypes.MetricsLabel{{Name: "job_type", Value: string(job.JobType)}}
	_ = wp.metricsSink.Incr(metricsTypes.Metric_Incr_JobClaimed, jobLabels, 1)
	wp.publishTransition(job, workerId, jobStore.JobStatus_Pending, nil)

	wp.logger.Sugar().Infow("Claimed job",
		zap.Uint64("jobId", job.Id),
		zap.String("jobType", string(job.JobType)),
		zap.String("workerId", workerId),
		zap.Int("retryCount", job.RetryCount),
	)

	startTime := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, wp.globalConfig.WorkerConfig.JobTimeout)
	jobErr := wp.runJob(jobCtx, job)
	cancel()
	_ = wp.metricsSink.Timing(metricsTypes.Metric_Timing_JobDuration, time.Since(startTime), jobLabels)

	if jobErr == nil {
		completed, err := wp.jobStore.CompleteJob(job.Id, workerId)
		if err != nil {
			return true, err
		}
		_ = wp.metricsSink.Incr(metricsTypes.Metric_Incr_JobCompleted, jobLabels, 1)
		wp.publishTransition(completed, workerId, jobStore.JobStatus_Processing, nil)
		wp.logger.Sugar().Infow("Completed job",
			zap.Uint64("jobId", job.Id),
			zap.String("workerId", workerId),
			zap.Int64("duration", time.Since(startTime).Milliseconds()),
		)
		return true, nil
	}

	// interrupted by shutdown rather than failed
	if ctx.Err() != nil {
		released, err := wp.jobStore.ReleaseJob(job.Id, workerId)
		if err != nil {
			return true, err
		}
		_ = wp.metricsSink.Incr(metricsTypes.Metric_Incr_JobsRequeued, nil, 1)
		wp.publishTransition(released, workerId, jobStore.JobStatus_Processing, jobErr)
		wp.logger.Sugar().Warnw("Released job on shutdown",
			zap.Uint64("jobId", job.Id),
			zap.String("workerId", workerId),
			zap.Error(jobErr),
		)
		return true, nil
	}

	failed, err := wp.jobStore.FailJob(job.Id, workerId, jobErr)
	if err != nil {
		return true, err
	}
	if failed.Status == jobStore.JobStatus_Failed {
		_ = wp.metricsSink.Incr(metricsTypes.Metric_Incr_JobFailed, jobLabels, 1)
	} else {
		_ = wp.metricsSink.Incr(metricsTypes.Metric_Incr_JobRetried, jobLabels, 1)
	}
	wp.publishTransition(failed, workerId, jobStore.JobStatus_Processing, jobErr)
	wp.logger.Sugar().Errorw("Job failed",
		zap.Uint64("jobId", job.Id),
		zap.String("workerId", workerId),
		zap.String("status", string(failed.Status)),
		zap.Int("retryCount", failed.RetryCount),
		zap.Error(jobErr),
	)
	return true, nil
}

func (wp *WorkerPool) runJob(ctx context.Context, job *jobStore.ProcessingJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %d panicked: %v", job.Id, r)
		}
	}()
	return wp.processor.ProcessJob(ctx, job)
}

func (wp *WorkerPool) publishTransition(job *jobStore.ProcessingJob, workerId string, from jobStore.JobStatus, jobErr error) {
	data := &eventBusTypes.JobTransitionData{
		JobId:    job.Id,
		JobType:  job.JobType,
		WorkerId: workerId,
		From:     from,
		To:       job.Status,
	}
	if jobErr != nil {
		data.Error = jobErr.Error()
	}
	wp.eventBus.Publish(&eventBusTypes.Event{
		Name: eventBusTypes.Event_JobTransition,
		Data: data,
	})
}
