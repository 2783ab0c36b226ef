package database

// SQL schemas for all ClickHouse tables

const (
	// StatusSnapshotsTableSQL creates the status_snapshots table
	StatusSnapshotsTableSQL = `
		CREATE TABLE IF NOT EXISTS status_snapshots (
			timestamp DateTime64(3),
			client_id String,
			server_online Bool,
			device_online Bool,
			device_state LowCardinality(String),
			glass_present Bool,
			active_pour Bool,
			uptime_seconds Float64,
			last_pour_ml Float64
		) ENGINE = MergeTree()
		ORDER BY (client_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// DispenseEventsTableSQL creates the dispense_events table, one row per
	// lifecycle transition
	DispenseEventsTableSQL = `
		CREATE TABLE IF NOT EXISTS dispense_events (
			timestamp DateTime64(3),
			client_id String,
			command_id String,
			from_state LowCardinality(String),
			to_state LowCardinality(String),
			amount_ml Int32,
			user_token String,
			reason String
		) ENGINE = MergeTree()
		ORDER BY (client_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		StatusSnapshotsTableSQL,
		DispenseEventsTableSQL,
	}
}
