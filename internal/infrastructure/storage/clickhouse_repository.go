package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"pricewatch/internal/domain/model"
	"pricewatch/internal/domain/repository"
)

// ClickHouseRepository implements TriggerHistory using ClickHouse as the
// backend database. It provides a durable, analytical audit log of every
// fired alert; the engine writes to it best-effort.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	// Ensure tables exist
	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

var _ repository.TriggerHistory = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS alert_triggers (
			alert_id String,
			owner_id String,
			symbol String,
			condition String,
			target_price Float64,
			current_price Float64,
			triggered_at DateTime64(3),
			recorded_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (owner_id, triggered_at)
	`)
}

// SaveTrigger appends one fired-alert record to ClickHouse.
func (r *ClickHouseRepository) SaveTrigger(ctx context.Context, event *model.TriggerEvent) error {
	query := `
		INSERT INTO alert_triggers (
			alert_id, owner_id, symbol, condition, target_price, current_price, triggered_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?
		)
	`

	return r.conn.AsyncInsert(ctx, query, false,
		event.AlertID,
		event.OwnerID,
		event.Symbol,
		string(event.Condition),
		event.TargetPrice.InexactFloat64(),
		event.CurrentPrice.InexactFloat64(),
		event.TriggeredAt,
	)
}

// TriggersSince retrieves fired-alert records for an owner after the given
// timestamp, oldest first.
func (r *ClickHouseRepository) TriggersSince(ctx context.Context, ownerID string, since time.Time) ([]*model.TriggerEvent, error) {
	query := `
		SELECT alert_id, owner_id, symbol, condition, target_price, current_price, triggered_at
		FROM alert_triggers
		WHERE owner_id = ? AND triggered_at >= ?
		ORDER BY triggered_at
	`

	rows, err := r.conn.Query(ctx, query, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.TriggerEvent
	for rows.Next() {
		var (
			event     model.TriggerEvent
			condition string
			target    float64
			current   float64
		)
		if err := rows.Scan(
			&event.AlertID,
			&event.OwnerID,
			&event.Symbol,
			&condition,
			&target,
			&current,
			&event.TriggeredAt,
		); err != nil {
			return nil, err
		}
		event.Condition = model.Condition(condition)
		event.TargetPrice = decimal.NewFromFloat(target)
		event.CurrentPrice = decimal.NewFromFloat(current)
		results = append(results, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
