// Package store reads the system of record and provides the cluster-visible
// reindex lock.
package store

import (
	"context"
	"errors"

	"github.com/kart-io/discovery-search/internal/model"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrLinksUnavailable is returned when the link table has not been created.
	ErrLinksUnavailable = errors.New("entity links unavailable")
)

// Factory defines the factory interface for creating stores.
type Factory interface {
	Entities() EntityStore
	Ping(ctx context.Context) error
	AutoMigrate() error
	Close() error
}

// EntityStore is the read-only view of entities used by the service.
type EntityStore interface {
	// ListActive returns every active entity.
	ListActive(ctx context.Context) ([]*model.Entity, error)
	Get(ctx context.Context, id string) (*model.Entity, error)
	// ListLinks returns the links touching id, joined with the entity on the
	// other side. Links whose other side no longer exists are skipped.
	ListLinks(ctx context.Context, id string) ([]*Connection, error)

	Industries(ctx context.Context) ([]string, error)
	Countries(ctx context.Context) ([]string, error)
	Stages(ctx context.Context) ([]string, error)
}

// Connection is one link seen from a given entity.
type Connection struct {
	Link      model.EntityLink
	OtherID   string
	OtherName string
	OtherType string
}
