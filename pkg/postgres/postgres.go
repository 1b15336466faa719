package postgres

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Layr-Labs/sidecar-events/internal/config"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultSSLMode      = "disable"
	maintenanceDatabase = "postgres"
)

var validSSLModes = []string{
	"disable",
	"require",
	"verify-ca",
	"verify-full",
}

type PostgresConfig struct {
	Host                string
	Port                int
	Username            string
	Password            string
	DbName              string
	CreateDbIfNotExists bool
	SchemaName          string
	SSLMode             string
	SSLCert             string
	SSLKey              string
	SSLRootCert         string
	// Zero leaves the database/sql default.
	MaxOpenConns int
}

type Postgres struct {
	Db *sql.DB
}

func PostgresConfigFromDbConfig(dbCfg *config.DatabaseConfig) *PostgresConfig {
	return &PostgresConfig{
		Host:        dbCfg.Host,
		Port:        dbCfg.Port,
		Username:    dbCfg.User,
		Password:    dbCfg.Password,
		DbName:      dbCfg.DbName,
		SchemaName:  dbCfg.SchemaName,
		SSLMode:     dbCfg.SSLMode,
		SSLCert:     dbCfg.SSLCert,
		SSLKey:      dbCfg.SSLKey,
		SSLRootCert: dbCfg.SSLRootCert,
	}
}

func (c *PostgresConfig) sslMode() (string, error) {
	if c.SSLMode == "" {
		return defaultSSLMode, nil
	}
	if !slices.Contains(validSSLModes, c.SSLMode) {
		return "", fmt.Errorf("invalid ssl mode: %s. Must be one of: %s", c.SSLMode, strings.Join(validSSLModes, ", "))
	}
	return c.SSLMode, nil
}

// connectionString renders a libpq key/value string for dbName.
func (c *PostgresConfig) connectionString(dbName string) (string, error) {
	sslMode, err := c.sslMode()
	if err != nil {
		return "", err
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("dbname=%s", dbName),
	}
	if c.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.Username))
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode), "TimeZone=UTC")

	if sslMode != defaultSSLMode {
		for _, kv := range [][2]string{
			{"sslcert", c.SSLCert},
			{"sslkey", c.SSLKey},
			{"sslrootcert", c.SSLRootCert},
		} {
			if kv[1] != "" {
				parts = append(parts, fmt.Sprintf("%s=%s", kv[0], kv[1]))
			}
		}
	}
	if c.SchemaName != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.SchemaName))
	}
	return strings.Join(parts, " "), nil
}

func getPostgresConnectionString(cfg *PostgresConfig) (string, error) {
	return cfg.connectionString(cfg.DbName)
}

func CreateDatabaseIfNotExists(cfg *PostgresConfig) error {
	connStr, err := cfg.connectionString(maintenanceDatabase)
	if err != nil {
		return err
	}
	root, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error connecting to postgres database: %w", err)
	}
	defer root.Close()

	var exists bool
	err = root.QueryRow(`SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)`, cfg.DbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("error checking if database exists: %w", err)
	}
	if exists {
		return nil
	}
	if _, err = root.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(cfg.DbName))); err != nil {
		return fmt.Errorf("error creating database: %w", err)
	}
	return nil
}

func NewPostgres(cfg *PostgresConfig) (*Postgres, error) {
	if cfg.CreateDbIfNotExists {
		if err := CreateDatabaseIfNotExists(cfg); err != nil {
			return nil, fmt.Errorf("failed to create database if not exists: %w", err)
		}
	}
	connStr, err := getPostgresConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection string: %w", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Postgres{
		Db: db,
	}, nil
}

func NewGormFromPostgresConnection(pgDb *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: pgDb,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup gorm: %w", err)
	}
	return db, nil
}
