// Package syncmgr moves records between a local soup store and the remote data service.
package syncmgr

import (
	"context"
	"fmt"
	"log"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/registry"
	"github.com/rzpsarthak13/smartsync/internal/syncstate"
)

// Callback observes every persisted status or progress change of a sync.
type Callback func(state *syncstate.SyncState)

// Config holds the sync engine settings.
type Config struct {
	// PageSize is used when scanning local soups for dirty records.
	PageSize int

	// SyncsSoup is the reserved soup holding sync states.
	SyncsSoup string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{PageSize: registry.DefaultPageSize, SyncsSoup: registry.DefaultSyncsSoup}
}

// SyncManager runs sync-down and sync-up jobs for one account and community.
// It does not lock a SyncState during a run; callers must not run the same state concurrently.
type SyncManager struct {
	account     core.Account
	communityID string
	store       core.SoupStore
	remote      core.RemoteClient
	events      core.EventQueue
	states      *syncstate.Repository
	pageSize    int
}

// NewSyncManager creates a manager and registers the syncs soup if needed.
// events may be nil.
func NewSyncManager(ctx context.Context, account core.Account, communityID string, store core.SoupStore, remote core.RemoteClient, events core.EventQueue, config Config) (*SyncManager, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if config.PageSize <= 0 {
		config.PageSize = registry.DefaultPageSize
	}
	if config.SyncsSoup == "" {
		config.SyncsSoup = registry.DefaultSyncsSoup
	}

	states := syncstate.NewRepository(store, config.SyncsSoup)
	if err := states.SetupSoupIfNeeded(ctx); err != nil {
		return nil, fmt.Errorf("failed to set up syncs soup: %w", err)
	}

	return &SyncManager{
		account:     account,
		communityID: communityID,
		store:       store,
		remote:      remote,
		events:      events,
		states:      states,
		pageSize:    config.PageSize,
	}, nil
}

// Account returns the account this manager belongs to.
func (m *SyncManager) Account() core.Account {
	return m.account
}

// Key returns the registry key of this manager.
func (m *SyncManager) Key() string {
	return m.account.Key(m.communityID)
}

// Store returns the local store.
func (m *SyncManager) Store() core.SoupStore {
	return m.store
}

// SyncDown creates a sync-down job and runs it to completion.
// Run failures are reported through the returned state's status, not the error.
func (m *SyncManager) SyncDown(ctx context.Context, target *syncstate.Target, options *syncstate.Options, soupName string, callback Callback) (*syncstate.SyncState, error) {
	state, err := m.states.CreateSyncDown(ctx, target, options, soupName)
	if err != nil {
		return nil, err
	}
	m.RunSync(ctx, state, callback)
	return state, nil
}

// SyncUp creates a sync-up job and runs it to completion.
func (m *SyncManager) SyncUp(ctx context.Context, options *syncstate.Options, soupName string, callback Callback) (*syncstate.SyncState, error) {
	state, err := m.states.CreateSyncUp(ctx, options, soupName)
	if err != nil {
		return nil, err
	}
	m.RunSync(ctx, state, callback)
	return state, nil
}

// ReSync reruns a completed SOQL sync-down, fetching only records modified
// after its high-water mark.
func (m *SyncManager) ReSync(ctx context.Context, syncID int64, callback Callback) (*syncstate.SyncState, error) {
	state, err := m.states.ByID(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if state.Type != syncstate.SyncDown {
		return nil, apperrors.Newf(apperrors.ErrInvalidRerun, "cannot resync %d: wrong type %s", syncID, state.Type)
	}
	if state.Target == nil || state.Target.QueryType != syncstate.QuerySOQL {
		return nil, apperrors.Newf(apperrors.ErrInvalidRerun, "cannot resync %d: only soql targets can be rerun", syncID)
	}
	if state.Status != syncstate.StatusDone {
		return nil, apperrors.Newf(apperrors.ErrInvalidRerun, "cannot resync %d: not done (%s)", syncID, state.Status)
	}

	m.RunSync(ctx, state, callback)
	return state, nil
}

// GetSyncStatus loads the persisted state of a sync.
func (m *SyncManager) GetSyncStatus(ctx context.Context, syncID int64) (*syncstate.SyncState, error) {
	return m.states.ByID(ctx, syncID)
}

// RunSync runs state from Running to Done or Failed. Errors are logged and
// recorded as Failed; they are never returned.
func (m *SyncManager) RunSync(ctx context.Context, state *syncstate.SyncState, callback Callback) {
	if state == nil {
		return
	}

	err := m.updateSync(ctx, state, syncstate.StatusRunning, 0, callback)
	if err == nil {
		switch state.Type {
		case syncstate.SyncDown:
			err = m.syncDown(ctx, state, callback)
		case syncstate.SyncUp:
			err = m.syncUp(ctx, state, callback)
		default:
			err = apperrors.Newf(apperrors.ErrInvalid, "unknown sync type %q", state.Type)
		}
	}

	// The terminal state is persisted even when ctx was cancelled mid-run.
	final := context.WithoutCancel(ctx)
	if err != nil {
		log.Printf("[SYNC:%d] Error during %s of soup %s: %v", state.ID, state.Type, state.SoupName, err)
		if uerr := m.updateSync(final, state, syncstate.StatusFailed, unchangedProgress, callback); uerr != nil {
			log.Printf("[SYNC:%d] Failed to persist failure: %v", state.ID, uerr)
		}
		return
	}

	if uerr := m.updateSync(final, state, syncstate.StatusDone, 100, callback); uerr != nil {
		log.Printf("[SYNC:%d] Failed to persist completion: %v", state.ID, uerr)
		return
	}
	log.Printf("[SYNC:%d] %s of soup %s done (%d records)", state.ID, state.Type, state.SoupName, state.TotalSize)
}

const unchangedProgress = -1

// updateSync persists a status change, then notifies the callback and the event queue.
func (m *SyncManager) updateSync(ctx context.Context, state *syncstate.SyncState, status syncstate.Status, progress int, callback Callback) error {
	state.Status = status
	if progress != unchangedProgress {
		state.Progress = progress
	}
	if err := m.states.Save(ctx, state); err != nil {
		return err
	}

	if callback != nil {
		callback(state.Clone())
	}
	m.publish(ctx, state)
	return nil
}

func (m *SyncManager) publish(ctx context.Context, state *syncstate.SyncState) {
	if m.events == nil {
		return
	}
	event := &core.SyncEvent{
		AccountKey: m.Key(),
		SyncID:     state.ID,
		Type:       string(state.Type),
		SoupName:   state.SoupName,
		Status:     string(state.Status),
		Progress:   state.Progress,
		TotalSize:  state.TotalSize,
	}
	if err := m.events.Publish(ctx, event); err != nil {
		log.Printf("[SYNC:%d] Failed to publish event: %v", state.ID, err)
	}
}

// send issues one remote request, mapping failures to NetworkFailure.
func (m *SyncManager) send(ctx context.Context, request *core.RemoteRequest) (*core.RemoteResponse, error) {
	resp, err := m.remote.Send(ctx, request)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetworkFailure, fmt.Sprintf("%s request failed", request.Kind), err)
	}
	if resp == nil {
		return nil, apperrors.Newf(apperrors.ErrNetworkFailure, "%s request returned no response", request.Kind)
	}
	return resp, nil
}
