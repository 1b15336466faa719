package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_JobClaimed          = "jobs.claimed"
	Metric_Incr_JobCompleted        = "jobs.completed"
	Metric_Incr_JobRetried          = "jobs.retried"
	Metric_Incr_JobFailed           = "jobs.failed"
	Metric_Incr_JobsRequeued        = "jobs.requeued"
	Metric_Incr_TransactionFailed   = "transactions.failed"
	Metric_Incr_EventsEmitted       = "events.emitted"
	Metric_Incr_ProcessingErrors    = "events.processing_errors"
	Metric_Incr_BlockProcessed      = "blocks.processed"
	Metric_Gauge_LastProcessedBlock = "blocks.last_processed"

	Metric_Timing_JobDuration   = "jobs.duration"
	Metric_Timing_BlockDuration = "blocks.process.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_JobClaimed,
			Labels: []string{"job_type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_JobCompleted,
			Labels: []string{"job_type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_JobRetried,
			Labels: []string{"job_type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_JobFailed,
			Labels: []string{"job_type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_JobsRequeued,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_TransactionFailed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_EventsEmitted,
			Labels: []string{"kind"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ProcessingErrors,
			Labels: []string{"stage"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_BlockProcessed,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_LastProcessedBlock,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_JobDuration,
			Labels: []string{"job_type"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_BlockDuration,
			Labels: []string{},
		},
	},
}
