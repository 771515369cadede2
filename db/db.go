package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/marcus-crane/crowdqueue/config"
	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/ranking"
)

// ErrNotFound is returned when an operation targets an item that is no longer
// a candidate. Under concurrent use this is an expected outcome.
var ErrNotFound = errors.New("item not found")

// Store is the persistence boundary for queue candidates and playback
// history. Implementations must make Increment, Remove and Promote atomic
// with respect to each other.
type Store interface {
	Insert(ctx context.Context, item models.Item) error
	Increment(ctx context.Context, id string) (int, error)
	Remove(ctx context.Context, id string) (models.Item, error)
	Scan(ctx context.Context) ([]models.Item, error)
	UpdateMetadata(ctx context.Context, id string, meta models.Metadata) error

	// Promote removes a candidate and records it as the active playback entry
	// in a single step.
	Promote(ctx context.Context, id string, startedAt int64) (models.Item, error)
	Finish(ctx context.Context, id string, finishedAt int64) error
	Active(ctx context.Context) (*models.PlaybackEntry, error)
	History(ctx context.Context, limit int) ([]models.PlaybackEntry, error)

	Close() error
}

// Migrator is implemented by stores backed by a SQL schema.
type Migrator interface {
	ApplyMigrations(migrations embed.FS) error
}

// Snapshot returns the current candidates in ranked order.
func Snapshot(ctx context.Context, s Store) ([]models.Item, error) {
	items, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.Sort(items), nil
}

// Open returns the store selected by the configuration. SQL stores still need
// their migrations applied.
func Open(cfg config.StoreConfig) (Store, error) {
	if cfg.Driver == "memory" {
		return NewMemoryStore(), nil
	}

	var (
		store *SQLStore
		err   error
	)
	switch cfg.Driver {
	case "sqlite":
		store, err = NewSqliteStore(cfg.DSN)
	case "postgres":
		store, err = NewPostgresStore(cfg.DSN)
	case "mysql":
		store, err = NewMysqlStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
