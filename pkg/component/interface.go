// Package component holds the connected backend clients (relational store,
// redis, etcd, elasticsearch) shared by the server and the CLI.
package component

import "context"

// Client is a connected backend that can be health checked.
type Client interface {
	// Name returns the dependency name reported by /health.
	Name() string
	Ping(ctx context.Context) error
	Close() error
}
