package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

func TestSQLiteDatabaseRoundTrip(t *testing.T) {
	db, err := NewSQLiteDatabase(MemoryPath, DriverModernc)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	res, err := db.Exec(ctx, "INSERT INTO t (name) VALUES (?)", "alpha")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil || id != 1 {
		t.Fatalf("LastInsertId() = %d, %v; want 1", id, err)
	}

	rows, err := db.Query(ctx, "SELECT id, name FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	cols, _ := rows.Columns()
	if strings.Join(cols, ",") != "id,name" {
		t.Errorf("Columns() = %v", cols)
	}
	var gotID int64
	var gotName string
	if !rows.Next() {
		t.Fatal("expected one row")
	}
	if err := rows.Scan(&gotID, &gotName); err != nil {
		t.Fatalf("scan: %v", err)
	}
	rows.Close()
	if gotName != "alpha" {
		t.Errorf("name = %q, want alpha", gotName)
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() failed: %v", err)
	}
	if len(tables) != 1 || tables[0] != "t" {
		t.Errorf("ListTables() = %v, want [t]", tables)
	}
}

func TestSQLiteTransactionRollback(t *testing.T) {
	db, err := NewSQLiteDatabase(MemoryPath, "")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.Exec(ctx, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx() failed: %v", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO t (v) VALUES (1)"); err != nil {
		t.Fatalf("insert in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	rows, err := db.Query(ctx, "SELECT count(*) FROM t")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	defer rows.Close()
	var n int
	rows.Next()
	rows.Scan(&n)
	if n != 0 {
		t.Errorf("count after rollback = %d, want 0", n)
	}
}

func TestSQLiteFileDatabaseCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	db, err := NewSQLiteDatabase(path, DriverModernc)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() failed: %v", err)
	}
	defer db.Close()
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.Dialect().Name() != "sqlite" {
		t.Errorf("Dialect().Name() = %q", db.Dialect().Name())
	}
}

func TestClosedDatabaseRejectsStatements(t *testing.T) {
	db, err := NewSQLiteDatabase(MemoryPath, DriverModernc)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if _, err := db.Exec(context.Background(), "SELECT 1"); err == nil {
		t.Error("Exec() on closed database should fail")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path, driver     string
		wantName, wantDS string
		wantErr          bool
	}{
		{"/tmp/a.db", "", "sqlite", "/tmp/a.db", false},
		{"/tmp/a.db", DriverModernc, "sqlite", "/tmp/a.db", false},
		{"/tmp/a.db", DriverNcruces, "sqlite3", "file:/tmp/a.db", false},
		{MemoryPath, DriverNcruces, "sqlite3", MemoryPath, false},
		{"/tmp/a.db", "cgo", "", "", true},
	}
	for _, tt := range tests {
		name, dsn, err := sqliteDSN(tt.path, tt.driver)
		if (err != nil) != tt.wantErr {
			t.Errorf("sqliteDSN(%q, %q) error = %v, wantErr %v", tt.path, tt.driver, err, tt.wantErr)
			continue
		}
		if name != tt.wantName || dsn != tt.wantDS {
			t.Errorf("sqliteDSN(%q, %q) = %q, %q; want %q, %q", tt.path, tt.driver, name, dsn, tt.wantName, tt.wantDS)
		}
	}
}

func TestMySQLDSN(t *testing.T) {
	got := mysqlDSN("db.local", 3306, "soups", "app", "secret", 10*time.Second)
	want := "app:secret@tcp(db.local:3306)/soups?parseTime=true&timeout=10s"
	if got != want {
		t.Errorf("mysqlDSN() = %q, want %q", got, want)
	}
}

func TestDialectColumnTypes(t *testing.T) {
	tests := []struct {
		dialect core.Dialect
		t       core.IndexType
		want    string
	}{
		{SQLiteDialect{}, core.IndexTypeString, "TEXT"},
		{SQLiteDialect{}, core.IndexTypeInteger, "INTEGER"},
		{SQLiteDialect{}, core.IndexTypeFloating, "REAL"},
		{SQLiteDialect{}, core.IndexTypeJSON, "TEXT"},
		{MySQLDialect{}, core.IndexTypeString, "VARCHAR(512)"},
		{MySQLDialect{}, core.IndexTypeInteger, "BIGINT"},
		{MySQLDialect{}, core.IndexTypeFloating, "DOUBLE"},
	}
	for _, tt := range tests {
		if got := tt.dialect.ColumnType(tt.t); got != tt.want {
			t.Errorf("%s.ColumnType(%s) = %q, want %q", tt.dialect.Name(), tt.t, got, tt.want)
		}
	}
}
