// Package database opens gorm connections shared by the postgres, mysql and
// sqlite drivers.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/discovery-search/pkg/component"
)

// PoolConfig configures the database/sql connection pool.
type PoolConfig struct {
	MaxIdleConnections    int
	MaxOpenConnections    int
	MaxConnectionLifeTime time.Duration
}

// Client wraps gorm.DB.
type Client struct {
	name string
	db   *gorm.DB
}

var _ component.Client = (*Client)(nil)

// LogLevel maps the numeric option (1 silent .. 4 info) to a gorm level.
func LogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

// Open opens a gorm connection with dialector, configures the pool and
// verifies connectivity.
func Open(ctx context.Context, name string, dialector gorm.Dialector, logLevel int, pool *PoolConfig) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(LogLevel(logLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if pool != nil {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConnections)
		sqlDB.SetMaxOpenConns(pool.MaxOpenConnections)
		sqlDB.SetConnMaxLifetime(pool.MaxConnectionLifeTime)
	}

	client := &Client{name: name, db: db}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// SQLDB returns the underlying sql.DB instance.
func (c *Client) SQLDB() (*sql.DB, error) {
	return c.db.DB()
}

// Name returns the driver name.
func (c *Client) Name() string {
	return c.name
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.name, err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
