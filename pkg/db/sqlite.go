// Package db opens the embedded result store.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// NewSQLite opens (or creates) the results database at path.
//
// The store is tuned for a single writer:
//   - WAL journal so the viewer can read while a run is writing
//   - busy timeout instead of immediate SQLITE_BUSY errors
//   - one connection, since the driver serializes writes anyway
func NewSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_timeout=5000&_fk=true", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return conn, nil
}
