package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
)

var smartPlaceholder = regexp.MustCompile(`\{([^}]+)\}`)

// SoupResolver looks up the physical names of registered soups.
type SoupResolver interface {
	// SoupTable returns the table of a soup or a NotRegistered error.
	SoupTable(soupName string) (string, error)

	// SoupColumn returns the column of an indexed path or a NotIndexed error.
	SoupColumn(soupName, path string) (string, error)
}

// ConvertSmartSQL rewrites the placeholders of a smart query into physical names:
//
//	{soup}                        -> TABLE_n
//	{soup:_soup}                  -> TABLE_n.soup
//	{soup:_soupEntryId}           -> TABLE_n.id
//	{soup:_soupLastModifiedDate}  -> TABLE_n.lastModified
//	{soup:path}                   -> TABLE_n.TABLE_n_k
//
// Only SELECT statements are accepted.
func ConvertSmartSQL(sql string, resolver SoupResolver) (string, error) {
	trimmed := strings.TrimSpace(sql)
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return "", apperrors.New(apperrors.ErrMalformedQuery, "smart sql must be a SELECT statement")
	}

	var convErr error
	converted := smartPlaceholder.ReplaceAllStringFunc(trimmed, func(match string) string {
		if convErr != nil {
			return match
		}
		out, err := convertPlaceholder(match[1:len(match)-1], resolver)
		if err != nil {
			convErr = err
			return match
		}
		return out
	})
	if convErr != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedQuery, "cannot convert smart sql", convErr)
	}
	return converted, nil
}

func convertPlaceholder(body string, resolver SoupResolver) (string, error) {
	soupName, path, hasPath := strings.Cut(body, ":")
	soupName = strings.TrimSpace(soupName)
	table, err := resolver.SoupTable(soupName)
	if err != nil {
		return "", err
	}
	if !hasPath {
		return table, nil
	}

	path = strings.TrimSpace(path)
	switch path {
	case "":
		return "", apperrors.Newf(apperrors.ErrMalformedQuery, "empty path in {%s}", body)
	case core.SoupPayload:
		return table + "." + ColumnPayload, nil
	}
	if reserved, ok := ReservedColumn(path); ok {
		return table + "." + reserved.ColumnName, nil
	}

	column, err := resolver.SoupColumn(soupName, path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", table, column), nil
}
