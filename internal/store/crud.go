package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/registry"
	"github.com/rzpsarthak13/smartsync/internal/schema"
)

type entry struct {
	id      int64
	payload map[string]interface{}
}

// readEntries drains rows of (id, soup) and closes them.
func readEntries(rows core.Rows) ([]entry, error) {
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan entry", err)
		}
		payload, err := decodePayload(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{id: id, payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read entries", err)
	}
	return entries, nil
}

func decodePayload(raw string) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt soup payload", err)
	}
	return payload, nil
}

// EntryID reads the _soupEntryId of a payload. JSON-decoded payloads carry it as float64.
func EntryID(payload map[string]interface{}) (int64, bool) {
	switch v := payload[core.SoupEntryID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Upsert inserts or updates one entry and returns the stored payload.
//
// With an externalIDPath, the entry whose indexed value at that path equals the
// payload's is updated; none means insert and more than one fails with Duplicate.
// Without one, the payload's _soupEntryId selects the entry to update and its
// absence means insert.
func (s *Store) Upsert(ctx context.Context, soupName string, payload map[string]interface{}, externalIDPath string) (map[string]interface{}, error) {
	if payload == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "payload cannot be nil")
	}

	var stored map[string]interface{}
	err := s.withTx(ctx, func(ex core.Executor) error {
		meta, err := s.metadata(ctx, ex, soupName)
		if err != nil {
			return err
		}

		if externalIDPath != "" {
			value := schema.Project(payload, externalIDPath)
			id, found, err := s.lookupEntryID(ctx, ex, meta, externalIDPath, value)
			if err != nil {
				return err
			}
			if found {
				stored, err = s.update(ctx, ex, meta, id, payload)
			} else {
				stored, err = s.insert(ctx, ex, meta, payload)
			}
			return err
		}

		if id, ok := EntryID(payload); ok {
			stored, err = s.update(ctx, ex, meta, id, payload)
		} else {
			stored, err = s.insert(ctx, ex, meta, payload)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Create always inserts payload as a new entry.
func (s *Store) Create(ctx context.Context, soupName string, payload map[string]interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "payload cannot be nil")
	}
	var stored map[string]interface{}
	err := s.withTx(ctx, func(ex core.Executor) error {
		meta, err := s.metadata(ctx, ex, soupName)
		if err != nil {
			return err
		}
		stored, err = s.insert(ctx, ex, meta, payload)
		return err
	})
	return stored, err
}

// Update replaces the entry with the given id.
func (s *Store) Update(ctx context.Context, soupName string, payload map[string]interface{}, entryID int64) (map[string]interface{}, error) {
	if payload == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "payload cannot be nil")
	}
	var stored map[string]interface{}
	err := s.withTx(ctx, func(ex core.Executor) error {
		meta, err := s.metadata(ctx, ex, soupName)
		if err != nil {
			return err
		}
		stored, err = s.update(ctx, ex, meta, entryID, payload)
		return err
	})
	return stored, err
}

// LookupSoupEntryID returns the id of the single entry whose indexed path equals value.
func (s *Store) LookupSoupEntryID(ctx context.Context, soupName, path string, value interface{}) (int64, error) {
	ex := s.executor(ctx)
	meta, err := s.metadata(ctx, ex, soupName)
	if err != nil {
		return 0, err
	}
	id, found, err := s.lookupEntryID(ctx, ex, meta, path, value)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, apperrors.Newf(apperrors.ErrNotFound, "no entry of soup %q has %s = %v", soupName, path, value)
	}
	return id, nil
}

func (s *Store) lookupEntryID(ctx context.Context, ex core.Executor, meta *registry.SoupMetadata, path string, value interface{}) (int64, bool, error) {
	spec, err := resolver(meta)(path)
	if err != nil {
		return 0, false, err
	}
	if value == nil {
		return 0, false, nil
	}
	arg, err := s.translator.Mapper().ToColumnValue(value, spec.Type)
	if err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("bad value for path %q", path), err)
	}

	rows, err := ex.Query(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 2",
		schema.ColumnID, meta.TableName, spec.ColumnName), arg)
	if err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrDatabase, "failed to look up entry", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan entry id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrDatabase, "failed to look up entry", err)
	}

	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	default:
		return 0, false, apperrors.Newf(apperrors.ErrDuplicate,
			"more than one entry of soup %q has %s = %v", meta.SoupName, path, value)
	}
}

// insert stores a copy of payload and assigns its entry id.
func (s *Store) insert(ctx context.Context, ex core.Executor, meta *registry.SoupMetadata, payload map[string]interface{}) (map[string]interface{}, error) {
	now := time.Now().UnixMilli()
	record := copyPayload(payload)
	delete(record, core.SoupEntryID)
	record[core.SoupLastModifiedDate] = now

	values, err := s.translator.IndexValues(record, meta.Specs, meta.Accessors)
	if err != nil {
		return nil, err
	}

	args := append([]interface{}{"{}", now, now}, values...)
	res, err := ex.Exec(ctx, s.translator.InsertSQL(meta.TableName, meta.Specs), args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to insert into soup %q", meta.SoupName), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read entry id", err)
	}
	record[core.SoupEntryID] = id

	raw, err := json.Marshal(record)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "payload is not JSON-serializable", err)
	}
	if _, err := ex.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		meta.TableName, schema.ColumnPayload, schema.ColumnID), string(raw), id); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to store payload", err)
	}
	return record, nil
}

// update replaces the payload and index columns of an existing entry.
func (s *Store) update(ctx context.Context, ex core.Executor, meta *registry.SoupMetadata, id int64, payload map[string]interface{}) (map[string]interface{}, error) {
	exists, err := s.entryExists(ctx, ex, meta, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "entry %d not found in soup %q", id, meta.SoupName)
	}

	now := time.Now().UnixMilli()
	record := copyPayload(payload)
	record[core.SoupEntryID] = id
	record[core.SoupLastModifiedDate] = now

	values, err := s.translator.IndexValues(record, meta.Specs, meta.Accessors)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "payload is not JSON-serializable", err)
	}

	args := append([]interface{}{string(raw), now}, values...)
	args = append(args, id)
	if _, err := ex.Exec(ctx, s.translator.UpdateSQL(meta.TableName, meta.Specs), args...); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to update soup %q", meta.SoupName), err)
	}
	return record, nil
}

func (s *Store) entryExists(ctx context.Context, ex core.Executor, meta *registry.SoupMetadata, id int64) (bool, error) {
	rows, err := ex.Query(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		schema.ColumnID, meta.TableName, schema.ColumnID), id)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to look up entry", err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// Retrieve returns the entries with the given ids in the order requested.
// Ids without an entry are skipped.
func (s *Store) Retrieve(ctx context.Context, soupName string, ids ...int64) ([]map[string]interface{}, error) {
	ex := s.executor(ctx)
	meta, err := s.metadata(ctx, ex, soupName)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []map[string]interface{}{}, nil
	}

	placeholders, args := inClause(ids)
	rows, err := ex.Query(ctx, fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		schema.ColumnID, schema.ColumnPayload, meta.TableName, schema.ColumnID, placeholders), args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to retrieve entries", err)
	}
	entries, err := readEntries(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]map[string]interface{}, len(entries))
	for _, e := range entries {
		byID[e.id] = e.payload
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, id := range ids {
		if payload, ok := byID[id]; ok {
			out = append(out, payload)
		}
	}
	return out, nil
}

// Delete removes the entries with the given ids. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, soupName string, ids ...int64) error {
	return s.withTx(ctx, func(ex core.Executor) error {
		meta, err := s.metadata(ctx, ex, soupName)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		placeholders, args := inClause(ids)
		if _, err := ex.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
			meta.TableName, schema.ColumnID, placeholders), args...); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to delete from soup %q", soupName), err)
		}
		return nil
	})
}

func inClause(ids []int64) (string, []interface{}) {
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	return out
}
