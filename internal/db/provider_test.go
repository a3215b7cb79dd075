package db

import (
	"net/url"
	"slices"
	"testing"

	"github.com/flowrun/flowrun/internal/config"
)

func TestSQLiteProvider_Type(t *testing.T) {
	provider := NewSQLiteProvider("/tmp/test")
	if provider.Type() != config.StoreSQLite {
		t.Errorf("Type() = %v, want %v", provider.Type(), config.StoreSQLite)
	}
	if provider.Dialect() != "sqlite3" {
		t.Errorf("Dialect() = %v, want %v", provider.Dialect(), "sqlite3")
	}
}

func TestSQLiteProvider_ConnectWithoutDataDir(t *testing.T) {
	if _, err := NewSQLiteProvider("").Connect(); err == nil {
		t.Error("expected error for empty data directory")
	}
}

func TestSQLiteProvider_DSN(t *testing.T) {
	dsn := NewSQLiteProvider("/tmp/flowrun-data").dsn()

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("dsn %q does not parse: %v", dsn, err)
	}
	if u.Scheme != "file" || u.Path != "/tmp/flowrun-data/flowrun.db" {
		t.Errorf("dsn = %q, want file URI for /tmp/flowrun-data/flowrun.db", dsn)
	}
	q := u.Query()
	if got := q["_pragma"]; !slices.Equal(got, sqlitePragmas) {
		t.Errorf("_pragma = %v, want %v", got, sqlitePragmas)
	}
	if got := q.Get("_txlock"); got != "immediate" {
		t.Errorf("_txlock = %q, want immediate", got)
	}
}

func TestMySQLProvider_Type(t *testing.T) {
	provider := NewMySQLProvider(config.MySQLConfig{})
	if provider.Type() != config.StoreMySQL {
		t.Errorf("Type() = %v, want %v", provider.Type(), config.StoreMySQL)
	}
	if provider.Dialect() != "mysql" {
		t.Errorf("Dialect() = %v, want %v", provider.Dialect(), "mysql")
	}
}

func TestMySQLProvider_BuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   config.MySQLConfig
		expected string
	}{
		{
			name: "DSN provided directly",
			config: config.MySQLConfig{
				DSN: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name: "Build from individual fields",
			config: config.MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				Database: "flowrun",
				Username: "testuser",
				Password: "testpass",
			},
			expected: "testuser:testpass@tcp(localhost:3306)/flowrun?parseTime=true",
		},
		{
			name: "Default port",
			config: config.MySQLConfig{
				Host:     "db.example.com",
				Database: "runs",
				Username: "admin",
				Password: "secret",
			},
			expected: "admin:secret@tcp(db.example.com:3306)/runs?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewMySQLProvider(tt.config).buildDSN()
			if result != tt.expected {
				t.Errorf("buildDSN() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.Config
		expectType  config.StoreType
		expectError error
	}{
		{
			name: "SQLite store",
			config: &config.Config{
				Data:  config.Data{Directory: "/tmp/test"},
				Store: config.StoreConfig{Type: config.StoreSQLite},
			},
			expectType: config.StoreSQLite,
		},
		{
			name: "MySQL store",
			config: &config.Config{
				Store: config.StoreConfig{
					Type: config.StoreMySQL,
					MySQL: config.MySQLConfig{
						Host:     "localhost",
						Database: "test",
						Username: "user",
						Password: "pass",
					},
				},
			},
			expectType: config.StoreMySQL,
		},
		{
			name:       "Default to SQLite when type is empty",
			config:     &config.Config{Data: config.Data{Directory: "/tmp/test"}},
			expectType: config.StoreSQLite,
		},
		{
			name:        "Disabled store",
			config:      &config.Config{Store: config.StoreConfig{Type: config.StoreNone}},
			expectError: ErrStoreDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.expectError != nil {
				if err != tt.expectError {
					t.Fatalf("NewProvider() error = %v, want %v", err, tt.expectError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if provider.Type() != tt.expectType {
				t.Errorf("Provider type = %v, want %v", provider.Type(), tt.expectType)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dir := range []string{"migrations/sqlite", "migrations/mysql"} {
		entries, err := FS.ReadDir(dir)
		if err != nil {
			t.Fatalf("reading %s: %v", dir, err)
		}
		if len(entries) == 0 {
			t.Errorf("no migrations embedded in %s", dir)
		}
	}
}
