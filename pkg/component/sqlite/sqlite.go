// Package sqlite opens an embedded SQLite store through the pure-Go
// glebarez driver. Used for single-node deployments and tests.
package sqlite

import (
	"context"

	"github.com/glebarez/sqlite"

	"github.com/kart-io/discovery-search/pkg/component/database"
	options "github.com/kart-io/discovery-search/pkg/options/sqlite"
)

// Name is the dependency name reported by health checks.
const Name = "sqlite"

// New opens the database file. Path ":memory:" opens a private in-memory
// database; the pool is pinned to one connection so every query sees it.
func New(ctx context.Context, opts *options.Options) (*database.Client, error) {
	path := opts.Path
	if path == "" {
		path = ":memory:"
	}

	return database.Open(ctx, Name, sqlite.Open(path), opts.LogLevel, &database.PoolConfig{
		MaxIdleConnections: 1,
		MaxOpenConnections: 1,
	})
}
