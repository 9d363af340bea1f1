package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"ospi/api/config"
	"ospi/api/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id   UUID,
		event_type LowCardinality(String),
		session_id String,
		timestamp  DateTime64(3, 'UTC'),
		page_path  String,
		product_id String,
		user_agent String,
		ip_address String,
		page_value Float64,
		event_data String
	)
	ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (event_type, timestamp)
`

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  logger.Logger
}

// NewClickHouseDB connects over the native protocol, pings the server and
// makes sure the event table exists.
func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, log logger.Logger) (*ClickHouseClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("CLICKHOUSE_HOST is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "ospi-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create analytics_events table: %w", err)
	}

	log.Info("Connected to ClickHouse",
		logger.String("addr", options.Addr[0]),
		logger.String("database", cfg.Database),
	)
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			c.log.Warn("ClickHouse close failed", logger.Error(err))
			return
		}
		c.log.Info("ClickHouse connection closed")
	}
}
