package syncmgr

import (
	"context"
	"log"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/remote"
	"github.com/rzpsarthak13/smartsync/internal/schema"
	"github.com/rzpsarthak13/smartsync/internal/store"
	"github.com/rzpsarthak13/smartsync/internal/syncstate"
)

// Action is what sync-up does with one dirty record.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// ActionFor picks the sync-up action by flag precedence: deleted, then created, then updated.
func ActionFor(record map[string]interface{}) Action {
	switch {
	case schema.ToBool(record[core.LocallyDeleted]):
		return ActionDelete
	case schema.ToBool(record[core.LocallyCreated]):
		return ActionCreate
	case schema.ToBool(record[core.LocallyUpdated]):
		return ActionUpdate
	default:
		return ActionNone
	}
}

func (m *SyncManager) syncUp(ctx context.Context, state *syncstate.SyncState, callback Callback) error {
	if state.Options == nil || len(state.Options.FieldList) == 0 {
		return apperrors.New(apperrors.ErrInvalid, "sync up requires a field list")
	}

	// Collected up front: syncing a record clears its flags and would shift later pages.
	var entryIDs []int64
	if err := m.scanDirty(ctx, state.SoupName, func(record map[string]interface{}) {
		if id, ok := store.EntryID(record); ok {
			entryIDs = append(entryIDs, id)
		}
	}); err != nil {
		return err
	}

	totalSize := len(entryIDs)
	state.TotalSize = totalSize
	if err := m.updateSync(ctx, state, syncstate.StatusRunning, 0, callback); err != nil {
		return err
	}

	mode := state.Options.EffectiveMergeMode()
	for i, id := range entryIDs {
		records, err := m.store.Retrieve(ctx, state.SoupName, id)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			if err := m.syncUpOneRecord(ctx, state.SoupName, state.Options.FieldList, records[0], mode); err != nil {
				return err
			}
		}

		progress := (i + 1) * 100 / totalSize
		if progress < 100 {
			if err := m.updateSync(ctx, state, syncstate.StatusRunning, progress, callback); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *SyncManager) syncUpOneRecord(ctx context.Context, soupName string, fieldList []string, record map[string]interface{}, mode syncstate.MergeMode) error {
	action := ActionFor(record)
	if action == ActionNone {
		return nil
	}

	entryID, ok := store.EntryID(record)
	if !ok {
		return apperrors.New(apperrors.ErrInvalid, "dirty record has no entry id")
	}

	// Never reached the server: nothing to delete remotely.
	if action == ActionDelete && schema.ToBool(record[core.LocallyCreated]) {
		log.Printf("[SYNC] Dropping locally created entry %d of %s without remote call", entryID, soupName)
		return m.store.Delete(ctx, soupName, entryID)
	}

	objectType, _ := schema.Project(record, remote.TypePath).(string)
	if objectType == "" {
		return apperrors.Newf(apperrors.ErrInvalid, "entry %d of %s has no %s", entryID, soupName, remote.TypePath)
	}
	objectID, _ := record[remote.FieldID].(string)

	if mode == syncstate.MergeLeaveIfChanged && (action == ActionUpdate || action == ActionDelete) {
		changed, err := m.remoteChangedSince(ctx, objectType, objectID, record)
		if err != nil {
			return err
		}
		if changed {
			log.Printf("[SYNC] Leaving %s %s: changed on server since last sync", objectType, objectID)
			return nil
		}
	}

	fields := make(map[string]interface{})
	if action == ActionCreate || action == ActionUpdate {
		for _, name := range fieldList {
			if name == remote.FieldID {
				continue
			}
			fields[name] = record[name]
		}
	}

	request := &core.RemoteRequest{ObjectType: objectType, ObjectID: objectID}
	switch action {
	case ActionCreate:
		request.Kind = core.RequestCreate
		request.ObjectID = ""
		request.Fields = fields
	case ActionUpdate:
		request.Kind = core.RequestUpdate
		request.Fields = fields
	case ActionDelete:
		request.Kind = core.RequestDelete
	}

	resp, err := m.send(ctx, request)
	if err != nil {
		return err
	}

	if action == ActionDelete {
		return m.store.Delete(ctx, soupName, entryID)
	}

	if action == ActionCreate {
		record[remote.FieldID] = resp.ID
	}
	clearFlags(record)
	record[core.SoupEntryID] = entryID
	_, err = m.store.Upsert(ctx, soupName, record, "")
	return err
}

// remoteChangedSince reports whether the server copy was modified after the
// LastModifiedDate the local copy was based on. A local copy without one is
// treated as unchanged.
func (m *SyncManager) remoteChangedSince(ctx context.Context, objectType, objectID string, record map[string]interface{}) (bool, error) {
	localRaw, _ := record[remote.FieldLastModifiedDate].(string)
	local, err := remote.ParseTimestamp(localRaw)
	if err != nil {
		return false, nil
	}

	resp, err := m.send(ctx, &core.RemoteRequest{
		Kind:       core.RequestRetrieve,
		ObjectType: objectType,
		ObjectID:   objectID,
		FieldList:  []string{remote.FieldLastModifiedDate},
	})
	if err != nil {
		return false, err
	}

	serverRaw, _ := resp.Record[remote.FieldLastModifiedDate].(string)
	server, err := remote.ParseTimestamp(serverRaw)
	if err != nil {
		return false, nil
	}
	return server > local, nil
}
