package core

import (
	"context"
)

// Executor runs statements against a database or an open transaction.
type Executor interface {
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Database is the relational backend a soup store lives in.
// Implementations wrap database/sql for a specific engine (SQLite, MySQL).
type Database interface {
	Executor

	// BeginTx starts a new transaction. Only one transaction may be open at a time.
	BeginTx(ctx context.Context) (Transaction, error)

	// Dialect returns the SQL flavour used to build DDL for soup tables.
	Dialect() Dialect

	// Close closes the connection pool and releases resources.
	Close() error
}

// Transaction is an open database transaction.
type Transaction interface {
	Executor

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction.
	Rollback() error
}

// Rows is a cursor over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Dialect describes the column types and key syntax of one SQL engine.
type Dialect interface {
	// Name returns the dialect identifier ("sqlite", "mysql").
	Name() string

	// ColumnType returns the physical column type used for an index of the given type.
	ColumnType(t IndexType) string

	// AutoIncrementKey returns the column definition of a monotonic integer primary key.
	AutoIncrementKey() string

	// PayloadType returns the column type holding a raw JSON payload.
	PayloadType() string

	// NameType returns the column type for short, indexable names.
	NameType() string
}
