package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
)

// Catalog tables and fixed soup table columns.
const (
	SoupNamesTable = "soup_names"
	IndexMapTable  = "soup_index_map"

	ColumnID           = "id"
	ColumnPayload      = "soup"
	ColumnCreated      = "created"
	ColumnLastModified = "lastModified"
)

// ColumnResolver maps an indexed path of the soup being queried to its column.
type ColumnResolver func(path string) (core.IndexSpec, error)

// ReservedColumn returns the fixed column backing a store-managed payload field.
func ReservedColumn(path string) (core.IndexSpec, bool) {
	switch path {
	case core.SoupEntryID:
		return core.IndexSpec{Path: path, Type: core.IndexTypeInteger, ColumnName: ColumnID}, true
	case core.SoupLastModifiedDate:
		return core.IndexSpec{Path: path, Type: core.IndexTypeInteger, ColumnName: ColumnLastModified}, true
	default:
		return core.IndexSpec{}, false
	}
}

// TableName returns the physical table of a soup id.
func TableName(soupID int64) string {
	return fmt.Sprintf("TABLE_%d", soupID)
}

// ColumnName returns the physical column of the n-th index of a soup table.
func ColumnName(tableName string, n int) string {
	return fmt.Sprintf("%s_%d", tableName, n)
}

// Translator builds the DDL and DML of soup tables for one SQL dialect.
type Translator struct {
	dialect core.Dialect
	mapper  *TypeMapper
}

// NewTranslator creates a new translator for the given dialect.
func NewTranslator(dialect core.Dialect) *Translator {
	return &Translator{
		dialect: dialect,
		mapper:  NewTypeMapper(),
	}
}

// Mapper returns the type mapper used for index values.
func (t *Translator) Mapper() *TypeMapper {
	return t.mapper
}

// CatalogDDL returns the statements creating the soup catalog tables.
func (t *Translator) CatalogDDL() []string {
	name := t.dialect.NameType()
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s %s, soupName %s NOT NULL UNIQUE, tableName %s NOT NULL)",
			SoupNamesTable, ColumnID, t.dialect.AutoIncrementKey(), name, name),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (soupId %s NOT NULL, path %s NOT NULL, columnName %s NOT NULL, columnType %s NOT NULL)",
			IndexMapTable, t.dialect.ColumnType(core.IndexTypeInteger), name, name, name),
	}
}

// CreateSoupTableDDL returns the statements creating a soup table and one index per column.
// Specs must carry their assigned column names.
func (t *Translator) CreateSoupTableDDL(tableName string, specs []core.IndexSpec) []string {
	intType := t.dialect.ColumnType(core.IndexTypeInteger)
	columns := []string{
		fmt.Sprintf("%s %s", ColumnID, t.dialect.AutoIncrementKey()),
		fmt.Sprintf("%s %s", ColumnPayload, t.dialect.PayloadType()),
		fmt.Sprintf("%s %s", ColumnCreated, intType),
		fmt.Sprintf("%s %s", ColumnLastModified, intType),
	}
	for _, spec := range specs {
		columns = append(columns, fmt.Sprintf("%s %s", spec.ColumnName, t.dialect.ColumnType(spec.Type)))
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", tableName, strings.Join(columns, ", ")),
	}
	for _, spec := range specs {
		stmts = append(stmts, t.createIndex(tableName, spec.ColumnName))
	}
	return stmts
}

// AddIndexColumnDDL returns the statements adding one indexed column to an existing soup table.
func (t *Translator) AddIndexColumnDDL(tableName string, spec core.IndexSpec) []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tableName, spec.ColumnName, t.dialect.ColumnType(spec.Type)),
		t.createIndex(tableName, spec.ColumnName),
	}
}

// DropSoupTableDDL returns the statement dropping a soup table.
func (t *Translator) DropSoupTableDDL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName)
}

func (t *Translator) createIndex(tableName, columnName string) string {
	return fmt.Sprintf("CREATE INDEX %s_idx ON %s (%s)", columnName, tableName, columnName)
}

// InsertSQL returns the INSERT of one entry. Arguments are payload, created,
// lastModified and then one value per spec.
func (t *Translator) InsertSQL(tableName string, specs []core.IndexSpec) string {
	columns := []string{ColumnPayload, ColumnCreated, ColumnLastModified}
	for _, spec := range specs {
		columns = append(columns, spec.ColumnName)
	}
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

// UpdateSQL returns the UPDATE of one entry. Arguments are payload, lastModified,
// one value per spec and finally the entry id.
func (t *Translator) UpdateSQL(tableName string, specs []core.IndexSpec) string {
	setParts := []string{ColumnPayload + " = ?", ColumnLastModified + " = ?"}
	for _, spec := range specs {
		setParts = append(setParts, spec.ColumnName+" = ?")
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", tableName, strings.Join(setParts, ", "), ColumnID)
}

// ReindexSQL returns the UPDATE rewriting only the index columns of one entry.
// Arguments are one value per spec and finally the entry id.
func (t *Translator) ReindexSQL(tableName string, specs []core.IndexSpec) string {
	setParts := make([]string, 0, len(specs))
	for _, spec := range specs {
		setParts = append(setParts, spec.ColumnName+" = ?")
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", tableName, strings.Join(setParts, ", "), ColumnID)
}

// IndexValues projects every indexed path of payload and converts it to its column type.
// accessors must be parallel to specs.
func (t *Translator) IndexValues(payload map[string]interface{}, specs []core.IndexSpec, accessors []*Accessor) ([]interface{}, error) {
	values := make([]interface{}, len(specs))
	for i, spec := range specs {
		var accessor *Accessor
		if i < len(accessors) && accessors[i] != nil {
			accessor = accessors[i]
		} else {
			accessor = NewAccessor(spec.Path)
		}
		v, err := t.mapper.ToColumnValue(accessor.Project(payload), spec.Type)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("cannot index path %q", spec.Path), err)
		}
		values[i] = v
	}
	return values, nil
}

// SelectSQL translates one page of a non-smart query into a SELECT over id and payload.
func (t *Translator) SelectSQL(tableName string, spec *core.QuerySpec, resolve ColumnResolver, pageIndex int) (string, []interface{}, error) {
	where, args, err := t.whereClause(spec, resolve)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := t.orderClause(spec, resolve)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s%s%s%s",
		ColumnID, ColumnPayload, tableName, where, orderBy, pageClause(spec.PageSize, pageIndex))
	return query, args, nil
}

// CountSQL translates a non-smart query into a COUNT over its matching rows.
func (t *Translator) CountSQL(tableName string, spec *core.QuerySpec, resolve ColumnResolver) (string, []interface{}, error) {
	where, args, err := t.whereClause(spec, resolve)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT count(*) FROM %s%s", tableName, where), args, nil
}

// SmartPageSQL wraps a converted smart query so it returns one page.
func (t *Translator) SmartPageSQL(sql string, pageSize, pageIndex int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS sub%s", trimStatement(sql), pageClause(pageSize, pageIndex))
}

// SmartCountSQL wraps a converted smart query so it returns its row count.
func (t *Translator) SmartCountSQL(sql string) string {
	return fmt.Sprintf("SELECT count(*) FROM (%s) AS sub", trimStatement(sql))
}

func (t *Translator) whereClause(spec *core.QuerySpec, resolve ColumnResolver) (string, []interface{}, error) {
	switch spec.Kind {
	case core.QueryAll:
		return "", nil, nil

	case core.QueryExact:
		col, err := resolve(spec.Path)
		if err != nil {
			return "", nil, err
		}
		if spec.MatchKey == nil {
			return fmt.Sprintf(" WHERE %s IS NULL", col.ColumnName), nil, nil
		}
		arg, err := t.queryArg(spec.MatchKey, col)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf(" WHERE %s = ?", col.ColumnName), []interface{}{arg}, nil

	case core.QueryRange:
		col, err := resolve(spec.Path)
		if err != nil {
			return "", nil, err
		}
		var conds []string
		var args []interface{}
		if spec.BeginKey != nil {
			arg, err := t.queryArg(spec.BeginKey, col)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, col.ColumnName+" >= ?")
			args = append(args, arg)
		}
		if spec.EndKey != nil {
			arg, err := t.queryArg(spec.EndKey, col)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, col.ColumnName+" <= ?")
			args = append(args, arg)
		}
		if len(conds) == 0 {
			return "", nil, nil
		}
		return " WHERE " + strings.Join(conds, " AND "), args, nil

	case core.QueryLike:
		col, err := resolve(spec.Path)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf(" WHERE %s LIKE ?", col.ColumnName), []interface{}{spec.LikeKey}, nil

	default:
		return "", nil, apperrors.Newf(apperrors.ErrMalformedQuery, "cannot translate %s query", spec.Kind)
	}
}

func (t *Translator) orderClause(spec *core.QuerySpec, resolve ColumnResolver) (string, error) {
	column := ColumnID
	if spec.OrderPath != "" {
		col, err := resolve(spec.OrderPath)
		if err != nil {
			return "", err
		}
		column = col.ColumnName
	}

	direction := "ASC"
	if spec.Order == core.Descending {
		direction = "DESC"
	}
	if column == ColumnID {
		return fmt.Sprintf(" ORDER BY %s %s", column, direction), nil
	}
	// Entry id breaks ties so pages never overlap
	return fmt.Sprintf(" ORDER BY %s %s, %s ASC", column, direction, ColumnID), nil
}

func (t *Translator) queryArg(value interface{}, col core.IndexSpec) (interface{}, error) {
	arg, err := t.mapper.ToColumnValue(value, col.Type)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, fmt.Sprintf("bad key for path %q", col.Path), err)
	}
	return arg, nil
}

func pageClause(pageSize, pageIndex int) string {
	if pageIndex < 0 {
		pageIndex = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, pageIndex*pageSize)
}

func trimStatement(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), ";")
}
