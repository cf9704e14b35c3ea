// Package mysql opens the MySQL system of record.
package mysql

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"

	"github.com/kart-io/discovery-search/pkg/component/database"
	options "github.com/kart-io/discovery-search/pkg/options/mysql"
)

// Name is the dependency name reported by health checks.
const Name = "mysql"

// New connects to MySQL.
func New(ctx context.Context, opts *options.Options) (*database.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mysql options cannot be nil")
	}

	return database.Open(ctx, Name, gormmysql.Open(BuildDSN(opts)), opts.LogLevel, &database.PoolConfig{
		MaxIdleConnections:    opts.MaxIdleConnections,
		MaxOpenConnections:    opts.MaxOpenConnections,
		MaxConnectionLifeTime: opts.MaxConnectionLifeTime,
	})
}

// BuildDSN formats the DSN with the driver's own config so that special
// characters in the password survive.
func BuildDSN(opts *options.Options) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = opts.Username
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
