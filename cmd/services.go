package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/Layr-Labs/sidecar-events/internal/logger"
	"github.com/Layr-Labs/sidecar-events/internal/metrics"
	"github.com/Layr-Labs/sidecar-events/internal/metrics/prometheus"
	"github.com/Layr-Labs/sidecar-events/pkg/clients/ethereum"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/contractStore/postgresContractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/decoder"
	"github.com/Layr-Labs/sidecar-events/pkg/eventBus"
	"github.com/Layr-Labs/sidecar-events/pkg/eventStore/gormEventStore"
	"github.com/Layr-Labs/sidecar-events/pkg/fetcher"
	"github.com/Layr-Labs/sidecar-events/pkg/jobStore/gormJobStore"
	"github.com/Layr-Labs/sidecar-events/pkg/postgres"
	"github.com/Layr-Labs/sidecar-events/pkg/processor"
	"github.com/Layr-Labs/sidecar-events/pkg/transformEngine"
	"github.com/Layr-Labs/sidecar-events/pkg/transformRules"
	"github.com/Layr-Labs/sidecar-events/pkg/transformers"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// services holds everything a command needs to process or enqueue work.
type services struct {
	cfg           *config.Config
	logger        *zap.Logger
	db            *sql.DB
	grm           *gorm.DB
	metricsSink   *metrics.MetricsSink
	prometheus    *prometheus.PrometheusMetricsClient
	contractStore *postgresContractStore.PostgresContractStore
	catalog       *contractStore.CachedCatalog
	jobStore      *gormJobStore.GormJobStore
	eventBus      *eventBus.EventBus
	processor     *processor.Processor
}

func newLogger(cfg *config.Config) *zap.Logger {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "sidecar-events"})
	if err != nil {
		panic(err)
	}
	return l
}

// newStoreServices opens and migrates the database without touching the RPC node.
func newStoreServices(cfg *config.Config, l *zap.Logger) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, grm, err := postgres.NewMigratedDatabaseFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	return &services{
		cfg:           cfg,
		logger:        l,
		db:            db,
		grm:           grm,
		metricsSink:   metrics.NewNoopMetricsSink(),
		contractStore: postgresContractStore.NewPostgresContractStore(grm, l, cfg),
		jobStore:      gormJobStore.NewGormJobStore(grm, cfg.WorkerConfig.MaxRetries, l),
		eventBus:      eventBus.NewEventBus(l),
	}, nil
}

// newProcessingServices additionally builds the catalog, transformation
// engine and block processor.
func newProcessingServices(cfg *config.Config, l *zap.Logger) (*services, error) {
	if err := cfg.ValidateEthereumRpc(); err != nil {
		return nil, err
	}
	s, err := newStoreServices(cfg, l)
	if err != nil {
		return nil, err
	}

	clients, pm, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics clients: %w", err)
	}
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}
	s.metricsSink = sink
	s.prometheus = pm

	s.catalog = contractStore.NewCachedCatalog(s.contractStore, l)
	if err := s.catalog.Load(); err != nil {
		return nil, fmt.Errorf("failed to load contract catalog: %w", err)
	}

	registry, err := transformers.NewDefaultRegistry(l)
	if err != nil {
		return nil, err
	}
	rules, err := transformRules.LoadRuleSet(cfg.TransformConfig.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load transformation rules: %w", err)
	}

	client := ethereum.NewClient(ethereum.ConvertGlobalConfigToEthereumConfig(&cfg.EthereumRpcConfig), l)
	f := fetcher.NewFetcher(client, &fetcher.FetcherConfig{
		MaxRetries: cfg.EthereumRpcConfig.MaxFetchRetries,
		RetryDelay: time.Second,
	}, l)

	s.processor = processor.NewProcessor(
		&fetcher.RetryingBlockSource{Fetcher: f},
		decoder.NewBlockDecoder(decoder.NewTransactionDecoder(s.catalog, l), l),
		transformEngine.NewEngine(registry, s.catalog, rules, l),
		s.jobStore,
		gormEventStore.NewGormEventStore(s.grm, l),
		s.eventBus,
		s.metricsSink,
		cfg,
		l,
	)
	return s, nil
}

func (s *services) close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Sugar().Warnw("Failed to close database", zap.Error(err))
		}
	}
}
