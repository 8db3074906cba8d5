// package repositories provides persistence for share links and conversion records.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/shared"
)

const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

var ErrConversionNotFound = fmt.Errorf("conversion not found")

// Stores bundles the persistence the engine needs. Conversions shares the link store's database.
type Stores struct {
	Links       models.LinkStore
	Conversions models.Repository[*models.Conversion]
}

// Close closes the underlying database.
func (s *Stores) Close() error {
	return s.Links.Close()
}

// Open opens the store selected by cfg.Driver and prepares its schema.
func Open(cfg shared.DatabaseConfig) (*Stores, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Path != ":memory:" {
			shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
		}

		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &Stores{Links: NewLinkRepository(db), Conversions: NewConversionRepository(db)}, nil
	case DriverBolt:
		store, err := NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return &Stores{Links: store, Conversions: store.Conversions()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

// notFound maps a missing row to the given sentinel.
func notFound(err error, sentinel error, id string) error {
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}

// epoch converts a TTL to the stored integer form.
func epoch(t time.Time) int64 {
	return t.Unix()
}
