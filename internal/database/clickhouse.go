package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB connects to ClickHouse and creates missing tables
func NewClickHouseDB(ctx context.Context, addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.For("clickhouse").Infof("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	logger.For("clickhouse").Info("Database schema initialized successfully")
	return nil
}

// SaveSnapshot stores one status report
func (db *ClickHouseDB) SaveSnapshot(ctx context.Context, report *models.StatusReport) error {
	query := `
		INSERT INTO status_snapshots (timestamp, client_id, server_online, device_online, device_state,
			glass_present, active_pour, uptime_seconds, last_pour_ml)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		report.Timestamp,
		report.ClientID,
		report.ServerOnline,
		report.DeviceOnline,
		string(report.DeviceState),
		report.GlassPresent,
		report.ActivePour,
		report.UptimeSeconds,
		report.LastPourMl,
	)

	if err != nil {
		return fmt.Errorf("failed to insert status snapshot: %w", err)
	}

	return nil
}

// SaveLifecycleEvent stores one dispense lifecycle transition
func (db *ClickHouseDB) SaveLifecycleEvent(ctx context.Context, ev *models.LifecycleEvent) error {
	query := `
		INSERT INTO dispense_events (timestamp, client_id, command_id, from_state, to_state, amount_ml, user_token, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		ev.Timestamp,
		ev.ClientID,
		ev.CommandID,
		ev.FromState,
		ev.ToState,
		int32(ev.AmountMl),
		ev.UserToken,
		ev.Reason,
	)

	if err != nil {
		return fmt.Errorf("failed to insert lifecycle event: %w", err)
	}

	logger.For("clickhouse").Debugf("Saved lifecycle event %s -> %s for command %s", ev.FromState, ev.ToState, ev.CommandID)
	return nil
}

// RecentLifecycleEvents returns the newest limit transitions for a client,
// newest first
func (db *ClickHouseDB) RecentLifecycleEvents(ctx context.Context, clientID string, limit int) ([]models.LifecycleEvent, error) {
	query := `
		SELECT timestamp, client_id, command_id, from_state, to_state, amount_ml, user_token, reason
		FROM dispense_events
		WHERE client_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []models.LifecycleEvent
	for rows.Next() {
		ev, err := scanLifecycleEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lifecycle events: %w", err)
	}
	return events, nil
}

// rowScanner is the Scan half of driver.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLifecycleEvent reads one dispense_events row in the column order of
// RecentLifecycleEvents
func scanLifecycleEvent(row rowScanner) (models.LifecycleEvent, error) {
	var (
		ev     models.LifecycleEvent
		amount int32
	)
	if err := row.Scan(&ev.Timestamp, &ev.ClientID, &ev.CommandID, &ev.FromState,
		&ev.ToState, &amount, &ev.UserToken, &ev.Reason); err != nil {
		return models.LifecycleEvent{}, fmt.Errorf("failed to scan lifecycle event: %w", err)
	}
	ev.AmountMl = int(amount)
	return ev, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		logger.For("clickhouse").Info("ClickHouse connection closed")
	}
	return nil
}
