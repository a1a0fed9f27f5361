package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// sqlConn implements core.Database on top of database/sql.
// Engine-specific types embed it and add their own open logic.
type sqlConn struct {
	db      *sql.DB
	tag     string
	dialect core.Dialect
	closed  bool
}

// Query executes a SELECT query and returns rows.
func (c *sqlConn) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if c.closed {
		return nil, fmt.Errorf("database is closed")
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("[%s] ERROR: Query failed: %v (query: %s)", c.tag, err, query)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (c *sqlConn) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if c.closed {
		return nil, fmt.Errorf("database is closed")
	}
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Printf("[%s] ERROR: Exec failed: %v (statement: %s)", c.tag, err, query)
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &sqlResult{result: result}, nil
}

// BeginTx starts a new transaction.
func (c *sqlConn) BeginTx(ctx context.Context) (core.Transaction, error) {
	if c.closed {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx, tag: c.tag}, nil
}

// Dialect returns the SQL dialect of this connection.
func (c *sqlConn) Dialect() core.Dialect {
	return c.dialect
}

// DB exposes the underlying pool.
func (c *sqlConn) DB() *sql.DB {
	return c.db
}

// Close closes the database connection.
func (c *sqlConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	log.Printf("[%s] Closing database", c.tag)
	return c.db.Close()
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlResult wraps sql.Result to implement core.Result.
type sqlResult struct {
	result sql.Result
}

func (r *sqlResult) LastInsertId() (int64, error) {
	return r.result.LastInsertId()
}

func (r *sqlResult) RowsAffected() (int64, error) {
	return r.result.RowsAffected()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx  *sql.Tx
	tag string
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("[%s] ERROR: Query in transaction failed: %v (query: %s)", t.tag, err, query)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		log.Printf("[%s] ERROR: Exec in transaction failed: %v (statement: %s)", t.tag, err, query)
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &sqlResult{result: result}, nil
}
