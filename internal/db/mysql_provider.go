package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/logging"
)

const (
	defaultMySQLPort        = 3306
	defaultMySQLConnTimeout = 10
)

// MySQLProvider implements the Provider interface for MySQL databases.
type MySQLProvider struct {
	config config.MySQLConfig
}

// NewMySQLProvider creates a new MySQL provider instance.
func NewMySQLProvider(cfg config.MySQLConfig) *MySQLProvider {
	return &MySQLProvider{
		config: cfg,
	}
}

// Connect establishes a connection to the MySQL database.
func (p *MySQLProvider) Connect() (*sql.DB, error) {
	db, err := sql.Open("mysql", p.buildDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxIdleConnections)
	db.SetConnMaxLifetime(5 * time.Minute)

	timeout := p.config.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultMySQLConnTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	logging.Info("Connected to MySQL database",
		"host", p.config.Host,
		"database", p.config.Database,
		"max_connections", p.config.MaxConnections)

	return db, nil
}

// buildDSN returns the configured DSN, or one assembled from the individual
// fields with parseTime enabled.
func (p *MySQLProvider) buildDSN() string {
	if p.config.DSN != "" {
		return p.config.DSN
	}

	port := p.config.Port
	if port == 0 {
		port = defaultMySQLPort
	}
	cfg := mysql.NewConfig()
	cfg.User = p.config.Username
	cfg.Passwd = p.config.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.config.Host, port)
	cfg.DBName = p.config.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Type returns the store type.
func (p *MySQLProvider) Type() config.StoreType {
	return config.StoreMySQL
}

// Dialect returns the SQL dialect name for migrations.
func (p *MySQLProvider) Dialect() string {
	return "mysql"
}
