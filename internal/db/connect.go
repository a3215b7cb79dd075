package db

import (
	"database/sql"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/logging"
)

// Connect opens the configured run history store and applies pending
// migrations. It returns ErrStoreDisabled when the store type is "none".
func Connect(cfg *config.Config) (*sql.DB, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database provider: %w", err)
	}

	db, err := provider.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, provider); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded migrations for the provider's dialect.
func Migrate(db *sql.DB, provider Provider) error {
	goose.SetBaseFS(FS)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(provider.Dialect()); err != nil {
		logging.Error("Failed to set dialect", "error", err)
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	dir := path.Join("migrations", migrationDir(provider.Type()))
	if err := goose.Up(db, dir); err != nil {
		logging.Error("Failed to apply migrations", "error", err)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func migrationDir(t config.StoreType) string {
	if t == config.StoreMySQL {
		return "mysql"
	}
	return "sqlite"
}

// gooseLogger routes migration output to the debug log.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logging.Debug(fmt.Sprintf(format, v...))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logging.Error(fmt.Sprintf(format, v...))
}
