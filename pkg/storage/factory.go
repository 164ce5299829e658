package storage

import (
	"fmt"

	"github.com/hamlet-filter/hamlet/pkg/config"
)

// NewDriver constructs the configured backend. An unknown backend name is a
// fatal configuration error.
func NewDriver(cfg *config.Config) (Driver, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemoryDriver(), nil
	case config.BackendRedis:
		return NewRedisDriver(&cfg.Storage.Redis)
	case config.BackendSQLite:
		return NewSQLiteDriver(cfg.Storage.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}
