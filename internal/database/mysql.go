package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLDatabase implements the core.Database interface using MySQL.
type MySQLDatabase struct {
	*sqlConn
}

// NewMySQLDatabase creates a new MySQL database implementation.
func NewMySQLDatabase(host string, port int, database, username, password string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime, connectionTimeout time.Duration) (*MySQLDatabase, error) {
	dsn := mysqlDSN(host, port, database, username, password, connectionTimeout)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("[MYSQL] Connected to %s:%d/%s", host, port, database)
	return &MySQLDatabase{
		sqlConn: &sqlConn{db: db, tag: "MYSQL", dialect: MySQLDialect{}},
	}, nil
}

// mysqlDSN builds the go-sql-driver DSN. parseTime is on so DATETIME columns scan into time.Time.
func mysqlDSN(host string, port int, database, username, password string, connectionTimeout time.Duration) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		username, password, host, port, database, connectionTimeout)
}

// ListTables returns a list of all table names in the database.
func (m *MySQLDatabase) ListTables(ctx context.Context) ([]string, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}

	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// ListColumns returns the column names of a table in ordinal order.
func (m *MySQLDatabase) ListColumns(ctx context.Context, tableName string) ([]string, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}

	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := m.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
