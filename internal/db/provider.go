package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/flowrun/flowrun/internal/config"
)

// ErrStoreDisabled is returned when run history is turned off.
var ErrStoreDisabled = errors.New("run history store is disabled")

// Provider defines the interface for database connection providers.
type Provider interface {
	// Connect establishes a connection to the database and returns a *sql.DB instance.
	// It should handle provider-specific connection setup, including:
	// - Connection string/DSN building
	// - Connection pooling configuration
	// - Provider-specific optimizations (pragmas, settings, etc.)
	// - Connection verification (ping)
	Connect() (*sql.DB, error)

	// Type returns the store type (sqlite or mysql).
	Type() config.StoreType

	// Dialect returns the SQL dialect name for migration purposes.
	Dialect() string
}

// NewProvider creates a new database provider based on the configuration.
func NewProvider(cfg *config.Config) (Provider, error) {
	storeType := cfg.Store.Type
	if storeType == "" {
		storeType = config.StoreSQLite
	}

	switch storeType {
	case config.StoreSQLite:
		return NewSQLiteProvider(cfg.Data.Directory), nil
	case config.StoreMySQL:
		return NewMySQLProvider(cfg.Store.MySQL), nil
	case config.StoreNone:
		return nil, ErrStoreDisabled
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
