package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "SIDECAR_EVENTS"

type Chain string

const (
	Chain_Mainnet Chain = "mainnet"
	Chain_Holesky Chain = "holesky"
	Chain_Sepolia Chain = "sepolia"
)

type DatabaseType string

const (
	DatabaseType_Postgres DatabaseType = "postgres"
	DatabaseType_Sqlite   DatabaseType = "sqlite"
)

type EthereumRpcConfig struct {
	BaseUrl           string
	RequestsPerSecond int
	BatchSize         int
	MaxFetchRetries   int
}

type DatabaseConfig struct {
	Type        DatabaseType
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
	SqlitePath  string
}

type WorkerConfig struct {
	Count           int
	PollInterval    time.Duration
	JobTimeout      time.Duration
	StaleAfter      time.Duration
	ReapInterval    time.Duration
	MaxRetries      int
	DefaultPriority int
}

type TransformConfig struct {
	RulesFile string
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug             bool
	Chain             Chain
	EthereumRpcConfig EthereumRpcConfig
	DatabaseConfig    DatabaseConfig
	WorkerConfig      WorkerConfig
	TransformConfig   TransformConfig
	DataDogConfig     DataDogConfig
	PrometheusConfig  PrometheusConfig
}

var (
	Debug    = "debug"
	ChainKey = "chain"

	EthereumRpcBaseUrl           = "ethereum.rpc_url"
	EthereumRpcRequestsPerSecond = "ethereum.requests_per_second"
	EthereumRpcBatchSize         = "ethereum.batch_size"
	EthereumRpcMaxFetchRetries   = "ethereum.max_fetch_retries"

	DatabaseTypeKey     = "database.type"
	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"
	DatabaseSqlitePath  = "database.sqlite_path"

	WorkersCount           = "workers.count"
	WorkersPollInterval    = "workers.poll_interval"
	WorkersJobTimeout      = "workers.job_timeout"
	WorkersStaleAfter      = "workers.stale_after"
	WorkersReapInterval    = "workers.reap_interval"
	WorkersMaxRetries      = "workers.max_retries"
	WorkersDefaultPriority = "workers.default_priority"

	TransformRulesFile = "transform.rules_file"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	// enqueue / reprocess / backfill flags
	JobBlockNumber       = "job.block_number"
	JobStartBlock        = "job.start_block"
	JobEndBlock          = "job.end_block"
	JobTransactionHashes = "job.transaction_hashes"
	JobBlockNumbers      = "job.block_numbers"
	JobIds               = "job.ids"
	JobPriority          = "job.priority"
)

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),
		Chain: Chain(StringWithDefault(viper.GetString(normalizeFlagName(ChainKey)), string(Chain_Mainnet))),

		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl:           viper.GetString(normalizeFlagName(EthereumRpcBaseUrl)),
			RequestsPerSecond: viper.GetInt(normalizeFlagName(EthereumRpcRequestsPerSecond)),
			BatchSize:         IntWithDefault(viper.GetInt(normalizeFlagName(EthereumRpcBatchSize)), 100),
			MaxFetchRetries:   IntWithDefault(viper.GetInt(normalizeFlagName(EthereumRpcMaxFetchRetries)), 5),
		},

		DatabaseConfig: DatabaseConfig{
			Type:        DatabaseType(StringWithDefault(viper.GetString(normalizeFlagName(DatabaseTypeKey)), string(DatabaseType_Postgres))),
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
			SqlitePath:  viper.GetString(normalizeFlagName(DatabaseSqlitePath)),
		},

		WorkerConfig: WorkerConfig{
			Count:           IntWithDefault(viper.GetInt(normalizeFlagName(WorkersCount)), 4),
			PollInterval:    DurationWithDefault(viper.GetDuration(normalizeFlagName(WorkersPollInterval)), time.Second),
			JobTimeout:      DurationWithDefault(viper.GetDuration(normalizeFlagName(WorkersJobTimeout)), 5*time.Minute),
			StaleAfter:      DurationWithDefault(viper.GetDuration(normalizeFlagName(WorkersStaleAfter)), 15*time.Minute),
			ReapInterval:    DurationWithDefault(viper.GetDuration(normalizeFlagName(WorkersReapInterval)), time.Minute),
			MaxRetries:      IntWithDefault(viper.GetInt(normalizeFlagName(WorkersMaxRetries)), 3),
			DefaultPriority: viper.GetInt(normalizeFlagName(WorkersDefaultPriority)),
		},

		TransformConfig: TransformConfig{
			RulesFile: viper.GetString(normalizeFlagName(TransformRulesFile)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    IntWithDefault(viper.GetInt(normalizeFlagName(PrometheusPort)), 2112),
		},
	}
}

func (c *Config) Validate() error {
	switch c.DatabaseConfig.Type {
	case DatabaseType_Postgres:
		if c.DatabaseConfig.Host == "" || c.DatabaseConfig.DbName == "" {
			return errors.New("database host and name are required for postgres")
		}
	case DatabaseType_Sqlite:
		if c.DatabaseConfig.SqlitePath == "" {
			return errors.New("sqlite path is required for sqlite")
		}
	default:
		return errors.New("database type must be one of 'postgres' or 'sqlite'")
	}
	if c.WorkerConfig.Count < 1 {
		return errors.New("worker count must be at least 1")
	}
	return nil
}

func (c *Config) ValidateEthereumRpc() error {
	if c.EthereumRpcConfig.BaseUrl == "" {
		return errors.New("ethereum rpc url is required")
	}
	return nil
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func StringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func IntWithDefault(value, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}

func DurationWithDefault(value, defaultValue time.Duration) time.Duration {
	if value == 0 {
		return defaultValue
	}
	return value
}

// ParseCommaList splits a comma-separated flag value, dropping empty entries.
func ParseCommaList(value string) []string {
	items := make([]string, 0)
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			items = append(items, s)
		}
	}
	return items
}
