package database

import (
	"github.com/rzpsarthak13/smartsync/internal/core"
)

// SQLiteDialect builds soup tables with SQLite storage classes.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) ColumnType(t core.IndexType) string {
	switch t {
	case core.IndexTypeInteger:
		return "INTEGER"
	case core.IndexTypeFloating:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (SQLiteDialect) AutoIncrementKey() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (SQLiteDialect) PayloadType() string { return "TEXT" }

func (SQLiteDialect) NameType() string { return "TEXT" }

// MySQLDialect builds soup tables with InnoDB-indexable types.
// String and JSON columns are bounded so a secondary index fits the key prefix limit.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) ColumnType(t core.IndexType) string {
	switch t {
	case core.IndexTypeInteger:
		return "BIGINT"
	case core.IndexTypeFloating:
		return "DOUBLE"
	default:
		return "VARCHAR(512)"
	}
}

func (MySQLDialect) AutoIncrementKey() string { return "BIGINT AUTO_INCREMENT PRIMARY KEY" }

func (MySQLDialect) PayloadType() string { return "LONGTEXT" }

func (MySQLDialect) NameType() string { return "VARCHAR(255)" }
