package syncmgr

import (
	"strings"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/remote"
	"github.com/rzpsarthak13/smartsync/internal/schema"
)

// LocalIDPrefix marks ids assigned locally before the server has seen a record.
const LocalIDPrefix = "local_"

// MarkCreated flags a new record for creation on the next sync up. A record
// without an Id gets a temporary local one.
func MarkCreated(record map[string]interface{}, objectType string) map[string]interface{} {
	if id, _ := record[remote.FieldID].(string); id == "" {
		record[remote.FieldID] = LocalIDPrefix + uuid.NewString()
	}
	if objectType != "" {
		record[remote.FieldAttributes] = map[string]interface{}{remote.FieldType: objectType}
	}
	record[core.Local] = true
	record[core.LocallyCreated] = true
	return record
}

// MarkUpdated flags a record for update on the next sync up.
func MarkUpdated(record map[string]interface{}) map[string]interface{} {
	record[core.Local] = true
	record[core.LocallyUpdated] = true
	return record
}

// MarkDeleted flags a record for deletion on the next sync up.
func MarkDeleted(record map[string]interface{}) map[string]interface{} {
	record[core.Local] = true
	record[core.LocallyDeleted] = true
	return record
}

// IsDirty reports whether a record has local changes not yet synced up.
func IsDirty(record map[string]interface{}) bool {
	return schema.ToBool(record[core.Local])
}

// IsLocalID reports whether id was assigned by MarkCreated.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

func clearFlags(record map[string]interface{}) {
	record[core.Local] = false
	record[core.LocallyCreated] = false
	record[core.LocallyUpdated] = false
	record[core.LocallyDeleted] = false
}
