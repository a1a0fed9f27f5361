package core

import (
	"fmt"
)

// IndexType is the value type of an indexed path.
type IndexType string

const (
	// IndexTypeString stores the projected value as text.
	IndexTypeString IndexType = "string"

	// IndexTypeInteger stores the projected value as a 64-bit integer.
	IndexTypeInteger IndexType = "integer"

	// IndexTypeFloating stores the projected value as a double.
	IndexTypeFloating IndexType = "floating"

	// IndexTypeJSON stores the projected value re-encoded as JSON text.
	IndexTypeJSON IndexType = "json"
)

// ParseIndexType converts a persisted type name back to an IndexType.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(s) {
	case IndexTypeString, IndexTypeInteger, IndexTypeFloating, IndexTypeJSON:
		return IndexType(s), nil
	default:
		return "", fmt.Errorf("unknown index type %q", s)
	}
}

// IndexSpec declares that a payload path is queryable through a dedicated column.
type IndexSpec struct {
	// Path is the dotted path into the payload (e.g. "Account.Name").
	Path string `json:"path" yaml:"path"`

	// Type is the value type of the column.
	Type IndexType `json:"type" yaml:"type"`

	// ColumnName is the physical column. It is assigned by the store at registration
	// and is empty on specs supplied by callers.
	ColumnName string `json:"columnName,omitempty" yaml:"column_name,omitempty"`
}

// NewIndexSpec returns an IndexSpec without a column name.
func NewIndexSpec(path string, t IndexType) IndexSpec {
	return IndexSpec{Path: path, Type: t}
}

// SameIndexSpecs reports whether two spec sets declare the same paths with the same types,
// regardless of order and assigned column names.
func SameIndexSpecs(a, b []IndexSpec) bool {
	if len(a) != len(b) {
		return false
	}
	types := make(map[string]IndexType, len(a))
	for _, spec := range a {
		types[spec.Path] = spec.Type
	}
	for _, spec := range b {
		t, ok := types[spec.Path]
		if !ok || t != spec.Type {
			return false
		}
	}
	return true
}

// Reserved payload fields written by the store.
const (
	// SoupEntryID is the payload field carrying the synthetic entry id.
	SoupEntryID = "_soupEntryId"

	// SoupLastModifiedDate is the payload field carrying the last write time in milliseconds.
	SoupLastModifiedDate = "_soupLastModifiedDate"

	// SoupPayload is the smart-sql pseudo path selecting the raw payload column.
	SoupPayload = "_soup"
)

// Local change flags kept inside payloads.
const (
	Local          = "__local__"
	LocallyCreated = "__locally_created__"
	LocallyUpdated = "__locally_updated__"
	LocallyDeleted = "__locally_deleted__"
)
