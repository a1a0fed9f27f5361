package core

import (
	"context"
)

// SoupStore is the subset of the relational store the sync engine depends on.
type SoupStore interface {
	// RegisterSoup creates a soup with the given index specs. Re-registering
	// with identical specs is a no-op.
	RegisterSoup(ctx context.Context, soupName string, specs []IndexSpec) error

	// HasSoup reports whether a soup is registered.
	HasSoup(ctx context.Context, soupName string) (bool, error)

	// Upsert inserts or updates one entry. When externalIDPath is empty the
	// payload's _soupEntryId decides between insert and update.
	Upsert(ctx context.Context, soupName string, payload map[string]interface{}, externalIDPath string) (map[string]interface{}, error)

	// Retrieve returns the entries with the given ids. Unknown ids are skipped.
	Retrieve(ctx context.Context, soupName string, ids ...int64) ([]map[string]interface{}, error)

	// Delete removes the entries with the given ids.
	Delete(ctx context.Context, soupName string, ids ...int64) error

	// Query returns one page of a query.
	Query(ctx context.Context, spec *QuerySpec, pageIndex int) ([]map[string]interface{}, error)

	// CountQuery returns the number of entries a query matches.
	CountQuery(ctx context.Context, spec *QuerySpec) (int64, error)

	// BeginTransaction opens the store-wide transaction. Calls made with the
	// returned context join it; other callers wait until it ends.
	BeginTransaction(ctx context.Context) (context.Context, error)

	// CommitTransaction commits the open transaction.
	CommitTransaction() error

	// RollbackTransaction aborts the open transaction.
	RollbackTransaction() error
}
