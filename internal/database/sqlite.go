package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "modernc.org/sqlite"
)

// Supported SQLite drivers.
const (
	// DriverModernc is the pure-Go modernc.org/sqlite driver (registered as "sqlite").
	DriverModernc = "modernc"

	// DriverNcruces is the wasm-based ncruces/go-sqlite3 driver (registered as "sqlite3").
	DriverNcruces = "ncruces"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase implements core.Database on a single SQLite file.
type SQLiteDatabase struct {
	*sqlConn
	path string
}

// NewSQLiteDatabase opens (creating if needed) the SQLite database at path.
// The pool is limited to one connection: SQLite has a single writer and an
// in-memory database only lives as long as its connection.
func NewSQLiteDatabase(path, driver string) (*SQLiteDatabase, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	driverName, dsn, err := sqliteDSN(path, driver)
	if err != nil {
		return nil, err
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("[SQLITE] Opening %s with driver %s", path, driverName)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &SQLiteDatabase{
		sqlConn: &sqlConn{db: db, tag: "SQLITE", dialect: SQLiteDialect{}},
		path:    path,
	}, nil
}

// sqliteDSN maps a driver choice to the registered driver name and its DSN.
func sqliteDSN(path, driver string) (string, string, error) {
	switch driver {
	case "", DriverModernc:
		return "sqlite", path, nil
	case DriverNcruces:
		if path == MemoryPath {
			return "sqlite3", path, nil
		}
		return "sqlite3", "file:" + path, nil
	default:
		return "", "", fmt.Errorf("unsupported sqlite driver %q (supported: %s, %s)", driver, DriverModernc, DriverNcruces)
	}
}

// Path returns the database file path.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// ListTables returns the names of all user tables.
func (s *SQLiteDatabase) ListTables(ctx context.Context) ([]string, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
