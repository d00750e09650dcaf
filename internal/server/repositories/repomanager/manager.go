// Package repomanager owns the connection to the configured account store
// and its lifecycle: schema preparation, health pings and shutdown.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
)

type RepositoryManager interface {
	Accounts() accounts.Repository
	// Prepare creates indexes or runs migrations. It is safe to call on
	// every start.
	Prepare(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// New connects to the store selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StorageDriver {
	case config.StorageMongo:
		return NewMongoRepositoryManager(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StoragePostgres:
		return NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	case config.StorageMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
