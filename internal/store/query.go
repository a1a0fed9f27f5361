package store

import (
	"context"
	"encoding/json"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/schema"
)

// Query returns page pageIndex of a query. Non-smart queries return stored
// payloads; smart queries return one map per row keyed by column label, with
// payload columns decoded.
func (s *Store) Query(ctx context.Context, spec *core.QuerySpec, pageIndex int) ([]map[string]interface{}, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if pageIndex < 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, "page index must be non-negative, got %d", pageIndex)
	}

	ex := s.executor(ctx)
	if spec.Kind == core.QuerySmart {
		return s.smartQuery(ctx, ex, spec, pageIndex)
	}

	meta, err := s.metadata(ctx, ex, spec.SoupName)
	if err != nil {
		return nil, err
	}
	query, args, err := s.translator.SelectSQL(meta.TableName, spec, resolver(meta), pageIndex)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to run query", err)
	}
	entries, err := readEntries(rows)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		out[i] = e.payload
	}
	return out, nil
}

// CountQuery returns the number of rows a query matches across all pages.
func (s *Store) CountQuery(ctx context.Context, spec *core.QuerySpec) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	ex := s.executor(ctx)
	var (
		query string
		args  []interface{}
	)
	if spec.Kind == core.QuerySmart {
		converted, err := schema.ConvertSmartSQL(spec.SmartSQL, soupResolver{ctx: ctx, ex: ex, store: s})
		if err != nil {
			return 0, err
		}
		query = s.translator.SmartCountSQL(converted)
	} else {
		meta, err := s.metadata(ctx, ex, spec.SoupName)
		if err != nil {
			return 0, err
		}
		query, args, err = s.translator.CountSQL(meta.TableName, spec, resolver(meta))
		if err != nil {
			return 0, err
		}
	}

	rows, err := ex.Query(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to count query", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan count", err)
		}
	}
	return count, rows.Err()
}

// ConvertSmartSQL rewrites soup and path placeholders of a smart query into table and column names.
func (s *Store) ConvertSmartSQL(ctx context.Context, smartSQL string) (string, error) {
	return schema.ConvertSmartSQL(smartSQL, soupResolver{ctx: ctx, ex: s.executor(ctx), store: s})
}

func (s *Store) smartQuery(ctx context.Context, ex core.Executor, spec *core.QuerySpec, pageIndex int) ([]map[string]interface{}, error) {
	converted, err := schema.ConvertSmartSQL(spec.SmartSQL, soupResolver{ctx: ctx, ex: ex, store: s})
	if err != nil {
		return nil, err
	}

	rows, err := ex.Query(ctx, s.translator.SmartPageSQL(converted, spec.PageSize, pageIndex))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "smart query failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read result columns", err)
	}

	mapper := s.translator.Mapper()
	out := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan smart query row", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			value := mapper.FromColumnValue(values[i])
			if column == schema.ColumnPayload {
				if raw, ok := value.(string); ok {
					var payload map[string]interface{}
					if err := json.Unmarshal([]byte(raw), &payload); err == nil {
						value = payload
					}
				}
			}
			row[column] = value
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read smart query rows", err)
	}
	return out, nil
}
