package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tkamdem/livrazone/core/config"
)

// Open builds the adapter and its own connection pool. The ORM keeps a
// separate handle for migrations; both point at the same store.
func Open(cfg *config.Config) (*Adapter, error) {
	if cfg.UsesPostgres() {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
		return New(db, BackendPostgres, cfg.App.TimeZone, cfg.Database.StatementTimeout), nil
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Database.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return New(db, BackendSQLite, cfg.App.TimeZone, cfg.Database.StatementTimeout), nil
}
