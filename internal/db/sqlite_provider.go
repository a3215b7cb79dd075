package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/logging"
)

const sqliteFile = "flowrun.db"

// sqlitePragmas are applied by the driver to every new connection.
var sqlitePragmas = []string{
	"foreign_keys(1)",
	"journal_mode(wal)",
	"busy_timeout(5000)",
	"synchronous(normal)",
}

// SQLiteProvider stores run history in flowrun.db under the data directory.
type SQLiteProvider struct {
	dataDir string
}

func NewSQLiteProvider(dataDir string) *SQLiteProvider {
	return &SQLiteProvider{dataDir: dataDir}
}

func (p *SQLiteProvider) Connect() (*sql.DB, error) {
	if p.dataDir == "" {
		return nil, fmt.Errorf("data directory is not set")
	}
	if err := os.MkdirAll(p.dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := p.dsn()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logging.Debug("Opened run history store", "dsn", dsn)
	return db, nil
}

// dsn builds a file: URI carrying the pragmas. Transactions take the write
// lock on BEGIN.
func (p *SQLiteProvider) dsn() string {
	q := url.Values{}
	for _, pragma := range sqlitePragmas {
		q.Add("_pragma", pragma)
	}
	q.Set("_txlock", "immediate")
	u := url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     filepath.ToSlash(filepath.Join(p.dataDir, sqliteFile)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (p *SQLiteProvider) Type() config.StoreType {
	return config.StoreSQLite
}

// Dialect is the goose dialect name.
func (p *SQLiteProvider) Dialect() string {
	return "sqlite3"
}
