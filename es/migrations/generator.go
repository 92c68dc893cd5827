package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config configures migration generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// EventsTable is the name of the events table
	EventsTable string

	// SnapshotsTable is the name of the snapshots table
	SnapshotsTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_event_sourcing.sql", timestamp),
		EventsTable:    "events",
		SnapshotsTable: "snapshots",
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return write(config, PostgresSQL(config))
}

// GenerateMySQL generates a MySQL migration file.
func GenerateMySQL(config *Config) error {
	return write(config, MySQLSQL(config))
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return write(config, SQLiteSQL(config))
}

func write(config *Config, sql string) error {
	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

// PostgresSQL returns the PostgreSQL schema. Exported so tests and examples
// can apply it directly without a file round-trip.
func PostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Sourcing Infrastructure Migration
-- Generated: %s

-- Events table stores all domain events in append-only fashion.
-- Rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS %[2]s (
    event_id UUID PRIMARY KEY,
    aggregate_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    version BIGINT NOT NULL,
    payload BYTEA NOT NULL,
    metadata JSONB,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    -- Optimistic concurrency: one writer wins each version per stream
    UNIQUE (aggregate_id, tenant_id, version)
);

-- Ordered stream reads, always tenant-scoped
CREATE INDEX IF NOT EXISTS idx_%[2]s_stream
    ON %[2]s (tenant_id, aggregate_id, version);

-- Snapshots table stores materialized aggregate checkpoints
CREATE TABLE IF NOT EXISTS %[3]s (
    aggregate_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    version BIGINT NOT NULL,
    payload BYTEA NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (aggregate_id, tenant_id, version)
);
`, time.Now().Format(time.RFC3339), config.EventsTable, config.SnapshotsTable)
}

// MySQLSQL returns the MySQL schema.
func MySQLSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Sourcing Infrastructure Migration
-- Generated: %s

CREATE TABLE IF NOT EXISTS %[2]s (
    event_id CHAR(36) NOT NULL,
    aggregate_id VARCHAR(255) NOT NULL,
    tenant_id VARCHAR(255) NOT NULL,
    version BIGINT NOT NULL,
    payload LONGBLOB NOT NULL,
    metadata JSON,
    occurred_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),

    PRIMARY KEY (event_id),
    UNIQUE KEY uniq_%[2]s_stream_version (aggregate_id, tenant_id, version),
    KEY idx_%[2]s_stream (tenant_id, aggregate_id, version)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS %[3]s (
    aggregate_id VARCHAR(255) NOT NULL,
    tenant_id VARCHAR(255) NOT NULL,
    version BIGINT NOT NULL,
    payload LONGBLOB NOT NULL,
    occurred_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),

    PRIMARY KEY (aggregate_id, tenant_id, version)
) ENGINE=InnoDB;
`, time.Now().Format(time.RFC3339), config.EventsTable, config.SnapshotsTable)
}

// SQLiteSQL returns the SQLite schema.
func SQLiteSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Sourcing Infrastructure Migration
-- Generated: %s

CREATE TABLE IF NOT EXISTS %[2]s (
    event_id TEXT PRIMARY KEY,
    aggregate_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    payload BLOB NOT NULL,
    metadata TEXT,
    occurred_at TEXT NOT NULL,

    UNIQUE (aggregate_id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_%[2]s_stream
    ON %[2]s (tenant_id, aggregate_id, version);

CREATE TABLE IF NOT EXISTS %[3]s (
    aggregate_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    payload BLOB NOT NULL,
    occurred_at TEXT NOT NULL,

    PRIMARY KEY (aggregate_id, tenant_id, version)
);
`, time.Now().Format(time.RFC3339), config.EventsTable, config.SnapshotsTable)
}
