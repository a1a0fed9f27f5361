// Package store implements the soup store: JSON documents kept in relational
// tables, with one typed and indexed column per declared path.
package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/registry"
	"github.com/rzpsarthak13/smartsync/internal/schema"
)

// Store implements core.SoupStore on a core.Database.
type Store struct {
	db         core.Database
	translator *schema.Translator
	validator  *schema.SpecValidator
	soups      *registry.SoupRegistry
	lifecycle  *registry.LifecycleManager

	// writer holds one token while a transaction, store-wide or per call, is open.
	writer chan struct{}

	txMu    sync.Mutex
	tx      core.Transaction
	txOwner *txToken
	txSeq   uint64
}

// txToken marks the context returned by BeginTransaction. Only calls made with
// that context run inside the open transaction.
type txToken struct {
	seq uint64
}

type txKey struct{}

var _ core.SoupStore = (*Store)(nil)

// New opens a store on db, creating the catalog tables if needed.
// The store does not own db; closing it is the caller's job.
func New(ctx context.Context, db core.Database, lifecycle *registry.LifecycleManager) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if lifecycle == nil {
		lifecycle = registry.NewLifecycleManager()
	}

	s := &Store{
		db:         db,
		translator: schema.NewTranslator(db.Dialect()),
		validator:  schema.NewSpecValidator(),
		soups:      registry.NewSoupRegistry(),
		lifecycle:  lifecycle,
		writer:     make(chan struct{}, 1),
	}

	for _, stmt := range s.translator.CatalogDDL() {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to create soup catalog", err)
		}
	}

	log.Printf("[STORE] Soup store ready (dialect: %s)", db.Dialect().Name())
	return s, nil
}

// Lifecycle returns the hook manager run around soup registration and drop.
func (s *Store) Lifecycle() *registry.LifecycleManager {
	return s.lifecycle
}

// BeginTransaction opens the store-wide transaction and returns the context
// that owns it. Store calls made with the returned context run inside the
// transaction; calls made with any other context wait for it to end before
// writing. Beginning again with the owning context is an error.
func (s *Store) BeginTransaction(ctx context.Context) (context.Context, error) {
	if s.owns(ctx) {
		return nil, apperrors.New(apperrors.ErrTransaction, "a transaction is already open")
	}
	if err := s.lockWriter(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		s.unlockWriter()
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}

	s.txMu.Lock()
	s.txSeq++
	token := &txToken{seq: s.txSeq}
	s.tx = tx
	s.txOwner = token
	s.txMu.Unlock()
	return context.WithValue(ctx, txKey{}, token), nil
}

// CommitTransaction commits the open transaction.
func (s *Store) CommitTransaction() error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	defer s.unlockWriter()

	if err := tx.Commit(); err != nil {
		s.soups.Clear()
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit transaction", err)
	}
	return nil
}

// RollbackTransaction aborts the open transaction. Cached soup metadata is
// dropped since catalog changes made inside the transaction are undone.
func (s *Store) RollbackTransaction() error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	defer s.unlockWriter()

	s.soups.Clear()
	if err := tx.Rollback(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to roll back transaction", err)
	}
	return nil
}

func (s *Store) takeTx() (core.Transaction, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if s.tx == nil {
		return nil, apperrors.New(apperrors.ErrTransaction, "no transaction is open")
	}
	tx := s.tx
	s.tx = nil
	s.txOwner = nil
	return tx, nil
}

// InTransaction reports whether a store-wide transaction is open.
func (s *Store) InTransaction() bool {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.tx != nil
}

func (s *Store) lockWriter(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.ErrTransaction, "gave up waiting for the open transaction", ctx.Err())
	}
}

func (s *Store) unlockWriter() {
	<-s.writer
}

// owned returns the open transaction if ctx owns it.
func (s *Store) owned(ctx context.Context) core.Transaction {
	token, _ := ctx.Value(txKey{}).(*txToken)
	if token == nil {
		return nil
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.txOwner != token {
		return nil
	}
	return s.tx
}

func (s *Store) owns(ctx context.Context) bool {
	return s.owned(ctx) != nil
}

// executor returns the transaction owned by ctx, or the database otherwise.
func (s *Store) executor(ctx context.Context) core.Executor {
	if tx := s.owned(ctx); tx != nil {
		return tx
	}
	return s.db
}

// withTx runs fn inside the transaction owned by ctx. Without one, it waits
// for the writer lock and runs fn in a transaction of its own that is
// committed when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(ex core.Executor) error) error {
	if tx := s.owned(ctx); tx != nil {
		return fn(tx)
	}

	if err := s.lockWriter(ctx); err != nil {
		return err
	}
	defer s.unlockWriter()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[STORE] ERROR: Rollback failed: %v", rbErr)
		}
		s.soups.Clear()
		return err
	}
	if err := tx.Commit(); err != nil {
		s.soups.Clear()
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit transaction", err)
	}
	return nil
}

// metadata returns the cached catalog entry of a soup, loading it through ex on a miss.
func (s *Store) metadata(ctx context.Context, ex core.Executor, soupName string) (*registry.SoupMetadata, error) {
	if meta, ok := s.soups.Get(soupName); ok {
		return meta, nil
	}

	meta, found, err := s.loadMetadata(ctx, ex, soupName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.Newf(apperrors.ErrNotRegistered, "soup %q is not registered", soupName)
	}
	s.soups.Put(meta)
	return meta, nil
}

func (s *Store) loadMetadata(ctx context.Context, ex core.Executor, soupName string) (*registry.SoupMetadata, bool, error) {
	rows, err := ex.Query(ctx,
		fmt.Sprintf("SELECT id, tableName FROM %s WHERE soupName = ?", schema.SoupNamesTable), soupName)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrDatabase, "failed to read soup catalog", err)
	}
	var (
		soupID    int64
		tableName string
		found     bool
	)
	if rows.Next() {
		if err := rows.Scan(&soupID, &tableName); err != nil {
			rows.Close()
			return nil, false, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan soup catalog", err)
		}
		found = true
	}
	rows.Close()
	if !found {
		return nil, false, nil
	}

	specs, err := s.loadIndexSpecs(ctx, ex, soupID)
	if err != nil {
		return nil, false, err
	}
	return registry.NewSoupMetadata(soupName, soupID, tableName, specs), true, nil
}

func (s *Store) loadIndexSpecs(ctx context.Context, ex core.Executor, soupID int64) ([]core.IndexSpec, error) {
	rows, err := ex.Query(ctx,
		fmt.Sprintf("SELECT path, columnName, columnType FROM %s WHERE soupId = ?", schema.IndexMapTable), soupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read index map", err)
	}
	defer rows.Close()

	var specs []core.IndexSpec
	for rows.Next() {
		var path, column, columnType string
		if err := rows.Scan(&path, &column, &columnType); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan index map", err)
		}
		t, err := core.ParseIndexType(columnType)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt index map", err)
		}
		specs = append(specs, core.IndexSpec{Path: path, Type: t, ColumnName: column})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read index map", err)
	}

	sort.Slice(specs, func(i, j int) bool {
		return columnOrdinal(specs[i].ColumnName) < columnOrdinal(specs[j].ColumnName)
	})
	return specs, nil
}

// columnOrdinal extracts n from TABLE_<id>_<n>.
func columnOrdinal(column string) int {
	idx := strings.LastIndex(column, "_")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(column[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// resolver maps query paths of one soup to columns.
func resolver(meta *registry.SoupMetadata) schema.ColumnResolver {
	return func(path string) (core.IndexSpec, error) {
		if spec, ok := schema.ReservedColumn(path); ok {
			return spec, nil
		}
		if spec, ok := meta.SpecForPath(path); ok {
			return spec, nil
		}
		return core.IndexSpec{}, apperrors.Newf(apperrors.ErrNotIndexed, "path %q is not indexed in soup %q", path, meta.SoupName)
	}
}

// soupResolver adapts the catalog to schema.SoupResolver for smart sql conversion.
type soupResolver struct {
	ctx   context.Context
	ex    core.Executor
	store *Store
}

func (r soupResolver) SoupTable(soupName string) (string, error) {
	meta, err := r.store.metadata(r.ctx, r.ex, soupName)
	if err != nil {
		return "", err
	}
	return meta.TableName, nil
}

func (r soupResolver) SoupColumn(soupName, path string) (string, error) {
	meta, err := r.store.metadata(r.ctx, r.ex, soupName)
	if err != nil {
		return "", err
	}
	spec, err := resolver(meta)(path)
	if err != nil {
		return "", err
	}
	return spec.ColumnName, nil
}
