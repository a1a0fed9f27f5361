package store

import (
	"context"
	"fmt"
	"log"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/registry"
	"github.com/rzpsarthak13/smartsync/internal/schema"
)

// RegisterSoup creates a soup with one indexed column per spec.
// Registering an existing soup with the same specs is a no-op; different
// specs fail with SchemaConflict.
func (s *Store) RegisterSoup(ctx context.Context, soupName string, specs []core.IndexSpec) error {
	if err := s.validator.ValidateSoupName(soupName); err != nil {
		return err
	}
	if err := s.validator.ValidateIndexSpecs(specs); err != nil {
		return err
	}

	return s.withTx(ctx, func(ex core.Executor) error {
		existing, found, err := s.loadMetadata(ctx, ex, soupName)
		if err != nil {
			return err
		}
		if found {
			if core.SameIndexSpecs(existing.Specs, specs) {
				s.soups.Put(existing)
				return nil
			}
			return apperrors.Newf(apperrors.ErrSchemaConflict,
				"soup %q is already registered with different index specs", soupName)
		}

		if err := s.lifecycle.ExecuteRegisterHooks(ctx, soupName, specs); err != nil {
			return fmt.Errorf("register hook failed for soup %q: %w", soupName, err)
		}

		res, err := ex.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (soupName, tableName) VALUES (?, ?)", schema.SoupNamesTable), soupName, "")
		if err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to insert soup name", err)
		}
		soupID, err := res.LastInsertId()
		if err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to read soup id", err)
		}
		tableName := schema.TableName(soupID)
		if _, err := ex.Exec(ctx,
			fmt.Sprintf("UPDATE %s SET tableName = ? WHERE id = ?", schema.SoupNamesTable), tableName, soupID); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to record soup table", err)
		}

		assigned := make([]core.IndexSpec, len(specs))
		for i, spec := range specs {
			assigned[i] = core.IndexSpec{Path: spec.Path, Type: spec.Type, ColumnName: schema.ColumnName(tableName, i)}
		}

		for _, stmt := range s.translator.CreateSoupTableDDL(tableName, assigned) {
			if _, err := ex.Exec(ctx, stmt); err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, "failed to create soup table", err)
			}
		}
		for _, spec := range assigned {
			if err := s.insertIndexMapRow(ctx, ex, soupID, spec); err != nil {
				return err
			}
		}

		s.soups.Put(registry.NewSoupMetadata(soupName, soupID, tableName, assigned))
		log.Printf("[STORE] Registered soup %s as %s with %d index(es)", soupName, tableName, len(assigned))
		return nil
	})
}

func (s *Store) insertIndexMapRow(ctx context.Context, ex core.Executor, soupID int64, spec core.IndexSpec) error {
	_, err := ex.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (soupId, path, columnName, columnType) VALUES (?, ?, ?, ?)", schema.IndexMapTable),
		soupID, spec.Path, spec.ColumnName, string(spec.Type))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to insert index map row", err)
	}
	return nil
}

// HasSoup reports whether a soup is registered.
func (s *Store) HasSoup(ctx context.Context, soupName string) (bool, error) {
	if _, ok := s.soups.Get(soupName); ok {
		return true, nil
	}
	meta, found, err := s.loadMetadata(ctx, s.executor(ctx), soupName)
	if err != nil {
		return false, err
	}
	if found {
		s.soups.Put(meta)
	}
	return found, nil
}

// DropSoup removes a soup, its table and its catalog rows. Dropping an
// unknown soup is a no-op.
func (s *Store) DropSoup(ctx context.Context, soupName string) error {
	return s.withTx(ctx, func(ex core.Executor) error {
		return s.dropSoup(ctx, ex, soupName)
	})
}

func (s *Store) dropSoup(ctx context.Context, ex core.Executor, soupName string) error {
	meta, found, err := s.loadMetadata(ctx, ex, soupName)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := s.lifecycle.ExecuteDropHooks(ctx, soupName); err != nil {
		return fmt.Errorf("drop hook failed for soup %q: %w", soupName, err)
	}

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{s.translator.DropSoupTableDDL(meta.TableName), nil},
		{fmt.Sprintf("DELETE FROM %s WHERE soupId = ?", schema.IndexMapTable), []interface{}{meta.SoupID}},
		{fmt.Sprintf("DELETE FROM %s WHERE id = ?", schema.SoupNamesTable), []interface{}{meta.SoupID}},
	}
	for _, stmt := range stmts {
		if _, err := ex.Exec(ctx, stmt.query, stmt.args...); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to drop soup %q", soupName), err)
		}
	}

	s.soups.Invalidate(soupName)
	log.Printf("[STORE] Dropped soup %s (%s)", soupName, meta.TableName)
	return nil
}

// DropAllSoups drops every registered soup.
func (s *Store) DropAllSoups(ctx context.Context) error {
	names, err := s.GetAllSoupNames(ctx)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(ex core.Executor) error {
		for _, name := range names {
			if err := s.dropSoup(ctx, ex, name); err != nil {
				return err
			}
		}
		return nil
	})
	s.soups.Clear()
	return err
}

// ClearSoup deletes every entry of a soup but keeps the soup registered.
func (s *Store) ClearSoup(ctx context.Context, soupName string) error {
	return s.withTx(ctx, func(ex core.Executor) error {
		meta, err := s.metadata(ctx, ex, soupName)
		if err != nil {
			return err
		}
		if _, err := ex.Exec(ctx, fmt.Sprintf("DELETE FROM %s", meta.TableName)); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to clear soup %q", soupName), err)
		}
		s.soups.Invalidate(soupName)
		return nil
	})
}

// GetAllSoupNames returns the names of all registered soups, sorted.
func (s *Store) GetAllSoupNames(ctx context.Context) ([]string, error) {
	rows, err := s.executor(ctx).Query(ctx,
		fmt.Sprintf("SELECT soupName FROM %s ORDER BY soupName", schema.SoupNamesTable))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list soups", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan soup name", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetSoupIndexSpecs returns the index specs of a soup with their column names.
func (s *Store) GetSoupIndexSpecs(ctx context.Context, soupName string) ([]core.IndexSpec, error) {
	meta, err := s.metadata(ctx, s.executor(ctx), soupName)
	if err != nil {
		return nil, err
	}
	specs := make([]core.IndexSpec, len(meta.Specs))
	copy(specs, meta.Specs)
	return specs, nil
}

// GetColumnNameForPath returns the column backing an indexed path.
func (s *Store) GetColumnNameForPath(ctx context.Context, soupName, path string) (string, error) {
	meta, err := s.metadata(ctx, s.executor(ctx), soupName)
	if err != nil {
		return "", err
	}
	spec, err := resolver(meta)(path)
	if err != nil {
		return "", err
	}
	return spec.ColumnName, nil
}

// ReIndexSoup adds the columns of new index specs and recomputes every index
// column of every entry. Changing the type of an indexed path fails with SchemaConflict.
func (s *Store) ReIndexSoup(ctx context.Context, soupName string, specs []core.IndexSpec) error {
	if err := s.validator.ValidateIndexSpecs(specs); err != nil {
		return err
	}

	return s.withTx(ctx, func(ex core.Executor) error {
		meta, err := s.metadata(ctx, ex, soupName)
		if err != nil {
			return err
		}

		next := 0
		for _, spec := range meta.Specs {
			if n := columnOrdinal(spec.ColumnName); n >= next {
				next = n + 1
			}
		}

		all := make([]core.IndexSpec, len(meta.Specs))
		copy(all, meta.Specs)
		added := 0
		for _, spec := range specs {
			if current, ok := meta.SpecForPath(spec.Path); ok {
				if current.Type != spec.Type {
					return apperrors.Newf(apperrors.ErrSchemaConflict,
						"path %q of soup %q is indexed as %s, cannot reindex as %s", spec.Path, soupName, current.Type, spec.Type)
				}
				continue
			}

			assigned := core.IndexSpec{Path: spec.Path, Type: spec.Type, ColumnName: schema.ColumnName(meta.TableName, next)}
			next++
			for _, stmt := range s.translator.AddIndexColumnDDL(meta.TableName, assigned) {
				if _, err := ex.Exec(ctx, stmt); err != nil {
					return apperrors.Wrap(apperrors.ErrDatabase, "failed to add index column", err)
				}
			}
			if err := s.insertIndexMapRow(ctx, ex, meta.SoupID, assigned); err != nil {
				return err
			}
			all = append(all, assigned)
			added++
		}

		s.soups.Invalidate(soupName)
		updated := registry.NewSoupMetadata(soupName, meta.SoupID, meta.TableName, all)
		count, err := s.backfill(ctx, ex, updated)
		if err != nil {
			return err
		}
		s.soups.Put(updated)
		log.Printf("[STORE] Reindexed soup %s: %d new index(es), %d entries backfilled", soupName, added, count)
		return nil
	})
}

// backfill recomputes the index columns of every entry of a soup.
func (s *Store) backfill(ctx context.Context, ex core.Executor, meta *registry.SoupMetadata) (int, error) {
	rows, err := ex.Query(ctx, fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		schema.ColumnID, schema.ColumnPayload, meta.TableName, schema.ColumnID))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan soup for reindex", err)
	}
	entries, err := readEntries(rows)
	if err != nil {
		return 0, err
	}

	query := s.translator.ReindexSQL(meta.TableName, meta.Specs)
	for _, entry := range entries {
		values, err := s.translator.IndexValues(entry.payload, meta.Specs, meta.Accessors)
		if err != nil {
			return 0, err
		}
		if _, err := ex.Exec(ctx, query, append(values, entry.id)...); err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to backfill index columns", err)
		}
	}
	return len(entries), nil
}
