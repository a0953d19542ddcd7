package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/auctionroom/internal/ports"
)

// Open returns the store for the configured driver: sqlite (default),
// postgres or memory (in-memory SQLite, lost on exit).
func Open(ctx context.Context, driver, dsn string) (ports.AuctionStore, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(dsn)
	case "memory":
		return NewSQLiteStore(":memory:")
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	}
	return nil, fmt.Errorf("storage.Open: unknown driver %q", driver)
}
