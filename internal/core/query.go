package core

import (
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
)

// QueryKind selects how a QuerySpec filters a soup.
type QueryKind string

const (
	QueryAll   QueryKind = "all"
	QueryExact QueryKind = "exact"
	QueryRange QueryKind = "range"
	QueryLike  QueryKind = "like"
	QuerySmart QueryKind = "smart"
)

// SortOrder is the direction of the ORDER BY clause.
type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

// QuerySpec describes one paged read over a soup.
type QuerySpec struct {
	// Kind is the scan kind.
	Kind QueryKind `json:"queryType"`

	// SoupName is the soup being read. Unused for smart queries, which name soups inline.
	SoupName string `json:"soupName,omitempty"`

	// Path is the indexed path filtered on by exact, range and like queries.
	Path string `json:"indexPath,omitempty"`

	// MatchKey is the value an exact query compares against.
	MatchKey interface{} `json:"matchKey,omitempty"`

	// BeginKey and EndKey bound a range query. Either may be nil for an open bound.
	BeginKey interface{} `json:"beginKey,omitempty"`
	EndKey   interface{} `json:"endKey,omitempty"`

	// LikeKey is the LIKE pattern of a like query.
	LikeKey string `json:"likeKey,omitempty"`

	// SmartSQL is the raw query of a smart query, with {soup} and {soup:path} placeholders.
	SmartSQL string `json:"smartSql,omitempty"`

	// OrderPath is the indexed path results are sorted by. Empty sorts by entry id.
	OrderPath string `json:"orderPath,omitempty"`

	// Order is the sort direction.
	Order SortOrder `json:"order,omitempty"`

	// PageSize is the fixed number of rows per page.
	PageSize int `json:"pageSize"`
}

// BuildAllQuerySpec returns a spec scanning every entry of a soup.
func BuildAllQuerySpec(soupName, orderPath string, order SortOrder, pageSize int) *QuerySpec {
	return &QuerySpec{
		Kind:      QueryAll,
		SoupName:  soupName,
		OrderPath: orderPath,
		Order:     order,
		PageSize:  pageSize,
	}
}

// BuildExactQuerySpec returns a spec matching entries whose path equals matchKey.
func BuildExactQuerySpec(soupName, path string, matchKey interface{}, pageSize int) *QuerySpec {
	return &QuerySpec{
		Kind:      QueryExact,
		SoupName:  soupName,
		Path:      path,
		MatchKey:  matchKey,
		OrderPath: path,
		Order:     Ascending,
		PageSize:  pageSize,
	}
}

// BuildRangeQuerySpec returns a spec matching entries whose path lies in [beginKey, endKey].
func BuildRangeQuerySpec(soupName, path string, beginKey, endKey interface{}, order SortOrder, pageSize int) *QuerySpec {
	return &QuerySpec{
		Kind:      QueryRange,
		SoupName:  soupName,
		Path:      path,
		BeginKey:  beginKey,
		EndKey:    endKey,
		OrderPath: path,
		Order:     order,
		PageSize:  pageSize,
	}
}

// BuildLikeQuerySpec returns a spec matching entries whose path is LIKE likeKey.
func BuildLikeQuerySpec(soupName, path, likeKey string, order SortOrder, pageSize int) *QuerySpec {
	return &QuerySpec{
		Kind:      QueryLike,
		SoupName:  soupName,
		Path:      path,
		LikeKey:   likeKey,
		OrderPath: path,
		Order:     order,
		PageSize:  pageSize,
	}
}

// BuildSmartQuerySpec returns a spec running a raw smart-sql query.
func BuildSmartQuerySpec(smartSQL string, pageSize int) *QuerySpec {
	return &QuerySpec{
		Kind:     QuerySmart,
		SmartSQL: smartSQL,
		PageSize: pageSize,
	}
}

// Validate checks that the fields required by the query kind are present.
func (q *QuerySpec) Validate() error {
	if q == nil {
		return apperrors.New(apperrors.ErrMalformedQuery, "query spec is nil")
	}
	if q.PageSize <= 0 {
		return apperrors.Newf(apperrors.ErrMalformedQuery, "page size must be positive, got %d", q.PageSize)
	}
	if q.Order != "" && q.Order != Ascending && q.Order != Descending {
		return apperrors.Newf(apperrors.ErrMalformedQuery, "unknown sort order %q", q.Order)
	}

	switch q.Kind {
	case QueryAll:
	case QueryExact, QueryRange, QueryLike:
		if q.Path == "" {
			return apperrors.Newf(apperrors.ErrMalformedQuery, "%s query requires an index path", q.Kind)
		}
	case QuerySmart:
		if q.SmartSQL == "" {
			return apperrors.New(apperrors.ErrMalformedQuery, "smart query requires a sql string")
		}
		return nil
	default:
		return apperrors.Newf(apperrors.ErrMalformedQuery, "unknown query kind %q", q.Kind)
	}

	if q.SoupName == "" {
		return apperrors.Newf(apperrors.ErrMalformedQuery, "%s query requires a soup name", q.Kind)
	}
	return nil
}
