package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/pkg/component/database"
)

var _ Factory = (*datastore)(nil)

// datastore implements the Factory interface.
type datastore struct {
	client *database.Client
	db     *gorm.DB
}

// NewFactory wraps an opened relational client.
func NewFactory(client *database.Client) Factory {
	return &datastore{client: client, db: client.DB()}
}

// Entities returns the entity store.
func (ds *datastore) Entities() EntityStore {
	return newEntities(ds.db)
}

// Ping checks the underlying connection.
func (ds *datastore) Ping(ctx context.Context) error {
	return ds.client.Ping(ctx)
}

// AutoMigrate migrates the database schema.
func (ds *datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Entity{},
		&model.EntityLink{},
	)
}

// Close closes the factory and underlying connections.
func (ds *datastore) Close() error {
	return ds.client.Close()
}
