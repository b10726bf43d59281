package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/retry"
)

// Options configures a ClickHouse connection
type Options struct {
	Host     string
	Port     int
	Database string // Target database, created by EnsureDatabase
	Username string
	Password string
	Retry    retry.Config
}

// Client wraps ClickHouse connection
type Client struct {
	conn     clickhouse.Conn
	database string
	retryCfg retry.Config
}

// NewClient connects to ClickHouse and verifies the connection with retries.
// The session uses the default database so the target database can be
// created afterwards; queries must qualify table names with Database().
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	username := opts.Username
	if username == "" {
		username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	retryCfg := opts.Retry.Normalize()

	// Test connection with retry
	if err := retry.Do(ctx, retryCfg, func() error {
		return conn.Ping(ctx)
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info().
		Str("host", opts.Host).
		Int("port", opts.Port).
		Str("database", opts.Database).
		Msg("Connected to ClickHouse")

	return &Client{
		conn:     conn,
		database: opts.Database,
		retryCfg: retryCfg,
	}, nil
}

// Database returns the target database name
func (c *Client) Database() string {
	return c.database
}

// EnsureDatabase creates the target database if it does not exist
func (c *Client) EnsureDatabase(ctx context.Context) error {
	return c.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.database))
}

// Close closes the connection
func (c *Client) Close() error {
	log.Info().Msg("Closing ClickHouse connection")
	return c.conn.Close()
}

// Count runs a single-value count query with retry logic
func (c *Client) Count(ctx context.Context, query string, args ...interface{}) (uint64, error) {
	return retry.DoWithResult(ctx, c.retryCfg, func() (uint64, error) {
		var count uint64
		err := c.conn.QueryRow(ctx, query, args...).Scan(&count)
		return count, err
	})
}

// Exec executes a non-SELECT query with retry logic
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		return c.conn.Exec(ctx, query, args...)
	})
}

// Insert sends a single-row batch with retry logic. A failed attempt
// abandons its batch and the next attempt prepares a fresh one.
func (c *Client) Insert(ctx context.Context, query string, values ...interface{}) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		batch, err := c.conn.PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		if err := batch.Append(values...); err != nil {
			batch.Abort()
			// Values that do not fit the columns fail the same way every time
			return retry.Permanent(fmt.Errorf("failed to append to batch: %w", err))
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		return nil
	})
}
