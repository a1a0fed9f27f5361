package syncmgr

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/remote"
	"github.com/rzpsarthak13/smartsync/internal/schema"
	"github.com/rzpsarthak13/smartsync/internal/syncstate"
)

var (
	wherePattern = regexp.MustCompile(`(?i) where `)
	fromPattern  = regexp.MustCompile(`(?i)( from +[^ ]*)`)
)

// AddFilterForReSync restricts query to records modified after maxTimeStamp (ms).
// The unchanged sentinel leaves the query as is.
func AddFilterForReSync(query string, maxTimeStamp int64) string {
	if maxTimeStamp == syncstate.UnchangedTimeStamp {
		return query
	}

	predicate := remote.FieldSystemModstamp + " > " + remote.FormatTimestamp(maxTimeStamp)
	if loc := wherePattern.FindStringIndex(query); loc != nil {
		return query[:loc[1]] + predicate + " and " + query[loc[1]:]
	}
	if loc := fromPattern.FindStringSubmatchIndex(query); loc != nil {
		return query[:loc[3]] + " where " + predicate + query[loc[3]:]
	}
	return query
}

// maxTimeStamp returns the largest SystemModstamp of records in ms. A record
// without a parsable stamp makes the whole page unchanged.
func maxTimeStamp(records []map[string]interface{}) int64 {
	max := syncstate.UnchangedTimeStamp
	for _, record := range records {
		raw, _ := record[remote.FieldSystemModstamp].(string)
		if strings.TrimSpace(raw) == "" {
			return syncstate.UnchangedTimeStamp
		}
		ts, err := remote.ParseTimestamp(raw)
		if err != nil {
			log.Printf("[SYNC] Could not parse %s %q", remote.FieldSystemModstamp, raw)
			return syncstate.UnchangedTimeStamp
		}
		if ts > max {
			max = ts
		}
	}
	return max
}

func (m *SyncManager) syncDown(ctx context.Context, state *syncstate.SyncState, callback Callback) error {
	if state.Target == nil {
		return apperrors.New(apperrors.ErrInvalid, "sync down has no target")
	}
	switch state.Target.QueryType {
	case syncstate.QuerySOQL:
		return m.syncDownSOQL(ctx, state, callback)
	case syncstate.QuerySOSL:
		return m.syncDownSOSL(ctx, state, callback)
	case syncstate.QueryMRU:
		return m.syncDownMRU(ctx, state, callback)
	default:
		return apperrors.Newf(apperrors.ErrInvalid, "unknown query type %q", state.Target.QueryType)
	}
}

func (m *SyncManager) syncDownSOQL(ctx context.Context, state *syncstate.SyncState, callback Callback) error {
	query := AddFilterForReSync(state.Target.Query, state.MaxTimeStamp)
	resp, err := m.send(ctx, &core.RemoteRequest{Kind: core.RequestQuery, Query: query})
	if err != nil {
		return err
	}

	totalSize := resp.TotalSize
	state.TotalSize = totalSize
	if err := m.updateSync(ctx, state, syncstate.StatusRunning, 0, callback); err != nil {
		return err
	}

	mode := state.Options.EffectiveMergeMode()
	highWater := state.MaxTimeStamp
	countSaved := 0
	for {
		if err := m.saveRecords(ctx, state.SoupName, resp.Records, mode); err != nil {
			return err
		}
		countSaved += len(resp.Records)
		if ts := maxTimeStamp(resp.Records); ts > highWater {
			highWater = ts
		}
		state.MaxTimeStamp = highWater

		if countSaved < totalSize {
			if err := m.updateSync(ctx, state, syncstate.StatusRunning, countSaved*100/totalSize, callback); err != nil {
				return err
			}
		}

		if resp.NextRecordsURL == "" {
			break
		}
		resp, err = m.send(ctx, &core.RemoteRequest{Kind: core.RequestQueryMore, NextRecordsURL: resp.NextRecordsURL})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *SyncManager) syncDownSOSL(ctx context.Context, state *syncstate.SyncState, callback Callback) error {
	resp, err := m.send(ctx, &core.RemoteRequest{Kind: core.RequestSearch, Query: state.Target.Query})
	if err != nil {
		return err
	}
	return m.saveSingleShot(ctx, state, resp.Records, callback)
}

func (m *SyncManager) syncDownMRU(ctx context.Context, state *syncstate.SyncState, callback Callback) error {
	target := state.Target
	recent, err := m.send(ctx, &core.RemoteRequest{Kind: core.RequestRecentItems, ObjectType: target.ObjectType})
	if err != nil {
		return err
	}

	fields := target.FieldList
	if len(fields) == 0 {
		fields = []string{remote.FieldID}
	}
	quoted := make([]string, len(recent.RecentIDs))
	for i, id := range recent.RecentIDs {
		quoted[i] = "'" + strings.ReplaceAll(id, "'", `\'`) + "'"
	}
	soql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(fields, ", "), target.ObjectType, remote.FieldID, strings.Join(quoted, ", "))

	resp, err := m.send(ctx, &core.RemoteRequest{Kind: core.RequestQuery, Query: soql})
	if err != nil {
		return err
	}
	return m.saveSingleShot(ctx, state, resp.Records, callback)
}

func (m *SyncManager) saveSingleShot(ctx context.Context, state *syncstate.SyncState, records []map[string]interface{}, callback Callback) error {
	state.TotalSize = len(records)
	if err := m.updateSync(ctx, state, syncstate.StatusRunning, 0, callback); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return m.saveRecords(ctx, state.SoupName, records, state.Options.EffectiveMergeMode())
}

// saveRecords writes one page in a single store transaction. Under
// LeaveIfChanged, records whose Id is locally dirty are skipped.
func (m *SyncManager) saveRecords(ctx context.Context, soupName string, records []map[string]interface{}, mode syncstate.MergeMode) (err error) {
	txCtx, err := m.store.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := m.store.RollbackTransaction(); rerr != nil {
				log.Printf("[SYNC] Rollback failed: %v", rerr)
			}
		}
	}()

	var skip map[string]bool
	if mode == syncstate.MergeLeaveIfChanged {
		skip, err = m.dirtyRecordIDs(txCtx, soupName)
		if err != nil {
			return err
		}
	}

	for _, record := range records {
		if skip != nil {
			if id, _ := record[remote.FieldID].(string); id != "" && skip[id] {
				continue
			}
		}

		payload := make(map[string]interface{}, len(record)+4)
		for k, v := range record {
			payload[k] = v
		}
		clearFlags(payload)
		if _, err = m.store.Upsert(txCtx, soupName, payload, remote.FieldID); err != nil {
			return err
		}
	}

	return m.store.CommitTransaction()
}

// dirtyRecordIDs returns the remote ids of locally dirty records.
func (m *SyncManager) dirtyRecordIDs(ctx context.Context, soupName string) (map[string]bool, error) {
	ids := make(map[string]bool)
	err := m.scanDirty(ctx, soupName, func(record map[string]interface{}) {
		if id, ok := schema.Project(record, remote.FieldID).(string); ok && id != "" {
			ids[id] = true
		}
	})
	return ids, err
}

// scanDirty visits every record whose local flag is set.
func (m *SyncManager) scanDirty(ctx context.Context, soupName string, visit func(map[string]interface{})) error {
	spec := core.BuildExactQuerySpec(soupName, core.Local, "true", m.pageSize)
	for page := 0; ; page++ {
		records, err := m.store.Query(ctx, spec, page)
		if err != nil {
			return err
		}
		for _, record := range records {
			visit(record)
		}
		if len(records) < m.pageSize {
			return nil
		}
	}
}
