// Package postgres opens the PostgreSQL system of record.
package postgres

import (
	"context"
	"fmt"
	"strings"

	postgresdriver "gorm.io/driver/postgres"

	"github.com/kart-io/discovery-search/pkg/component/database"
	options "github.com/kart-io/discovery-search/pkg/options/postgres"
)

// Name is the dependency name reported by health checks.
const Name = "postgres"

// New connects to PostgreSQL.
func New(ctx context.Context, opts *options.Options) (*database.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("postgres options cannot be nil")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}

	return database.Open(ctx, Name, postgresdriver.Open(BuildDSN(opts)), opts.LogLevel, &database.PoolConfig{
		MaxIdleConnections:    opts.MaxIdleConnections,
		MaxOpenConnections:    opts.MaxOpenConnections,
		MaxConnectionLifeTime: opts.MaxConnectionLifeTime,
	})
}

// BuildDSN creates a key=value DSN. The password is quoted when it
// contains spaces, quotes or backslashes.
//
//	host=localhost port=5432 user=postgres password=secret dbname=discovery sslmode=disable
func BuildDSN(opts *options.Options) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.Username,
		escapeValue(opts.Password),
		opts.Database,
		opts.SSLMode,
	)
}

func escapeValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}
