// Package syncstate defines the persisted record of a sync job and its
// storage in the reserved syncs soup.
package syncstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
)

// Type is the direction of a sync job.
type Type string

const (
	SyncDown Type = "syncDown"
	SyncUp   Type = "syncUp"
)

// Status is the lifecycle state of a sync job: NEW -> RUNNING -> DONE | FAILED.
type Status string

const (
	StatusNew     Status = "NEW"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// QueryType selects how a sync-down target fetches records.
type QueryType string

const (
	QuerySOQL QueryType = "soql"
	QuerySOSL QueryType = "sosl"
	QueryMRU  QueryType = "mru"
)

// MergeMode decides whether sync writes may replace locally modified records.
type MergeMode string

const (
	MergeOverwrite      MergeMode = "OVERWRITE"
	MergeLeaveIfChanged MergeMode = "LEAVE_IF_CHANGED"
)

// UnchangedTimeStamp marks a high-water mark that has not been observed yet.
const UnchangedTimeStamp int64 = -1

// Target describes what a sync-down fetches.
type Target struct {
	QueryType QueryType `json:"type" yaml:"type"`

	// Query is the SOQL or SOSL string. Unused for MRU targets.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// FieldList is the projection of an MRU target.
	FieldList []string `json:"fieldlist,omitempty" yaml:"fieldlist,omitempty"`

	// ObjectType is the remote object type of an MRU target.
	ObjectType string `json:"sobjectType,omitempty" yaml:"sobject_type,omitempty"`
}

// NewSOQLTarget returns a paged query target.
func NewSOQLTarget(query string) *Target {
	return &Target{QueryType: QuerySOQL, Query: query}
}

// NewSOSLTarget returns a single-shot search target.
func NewSOSLTarget(query string) *Target {
	return &Target{QueryType: QuerySOSL, Query: query}
}

// NewMRUTarget returns a recently-used-items target.
func NewMRUTarget(objectType string, fieldList []string) *Target {
	return &Target{QueryType: QueryMRU, ObjectType: objectType, FieldList: fieldList}
}

// Validate checks the fields required by the target's query type.
func (t *Target) Validate() error {
	if t == nil {
		return apperrors.New(apperrors.ErrInvalid, "sync target is required")
	}
	switch t.QueryType {
	case QuerySOQL, QuerySOSL:
		if strings.TrimSpace(t.Query) == "" {
			return apperrors.Newf(apperrors.ErrInvalid, "%s target requires a query", t.QueryType)
		}
	case QueryMRU:
		if t.ObjectType == "" || len(t.FieldList) == 0 {
			return apperrors.New(apperrors.ErrInvalid, "mru target requires an object type and a field list")
		}
	default:
		return apperrors.Newf(apperrors.ErrInvalid, "unknown target type %q", t.QueryType)
	}
	return nil
}

// Options carries the field list and merge mode of a sync job.
type Options struct {
	FieldList []string  `json:"fieldlist,omitempty" yaml:"fieldlist,omitempty"`
	MergeMode MergeMode `json:"mergeMode,omitempty" yaml:"merge_mode,omitempty"`
}

// NewOptions returns options with the given field list and merge mode.
// An empty merge mode means overwrite.
func NewOptions(fieldList []string, mergeMode MergeMode) *Options {
	if mergeMode == "" {
		mergeMode = MergeOverwrite
	}
	return &Options{FieldList: fieldList, MergeMode: mergeMode}
}

// EffectiveMergeMode returns the merge mode, defaulting to overwrite.
func (o *Options) EffectiveMergeMode() MergeMode {
	if o == nil || o.MergeMode == "" {
		return MergeOverwrite
	}
	return o.MergeMode
}

// SyncState is the persisted record of one sync job.
type SyncState struct {
	// ID is the entry id of the state in the syncs soup.
	ID           int64    `json:"_soupEntryId,omitempty"`
	Type         Type     `json:"type"`
	Target       *Target  `json:"target,omitempty"`
	Options      *Options `json:"options,omitempty"`
	SoupName     string   `json:"soupName"`
	Status       Status   `json:"status"`
	Progress     int      `json:"progress"`
	TotalSize    int      `json:"totalSize"`
	MaxTimeStamp int64    `json:"maxTimeStamp"`
}

// IsDone reports whether the last run completed successfully.
func (s *SyncState) IsDone() bool { return s.Status == StatusDone }

// IsFailed reports whether the last run failed.
func (s *SyncState) IsFailed() bool { return s.Status == StatusFailed }

// IsRunning reports whether a run is in progress.
func (s *SyncState) IsRunning() bool { return s.Status == StatusRunning }

// Clone returns a deep copy of the state.
func (s *SyncState) Clone() *SyncState {
	out := *s
	if s.Target != nil {
		t := *s.Target
		t.FieldList = append([]string(nil), s.Target.FieldList...)
		out.Target = &t
	}
	if s.Options != nil {
		o := *s.Options
		o.FieldList = append([]string(nil), s.Options.FieldList...)
		out.Options = &o
	}
	return &out
}

// ToMap converts the state into a soup payload.
func (s *SyncState) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync state: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to convert sync state: %w", err)
	}
	return payload, nil
}

// FromMap rebuilds a state from a soup payload.
func FromMap(payload map[string]interface{}) (*SyncState, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync state payload: %w", err)
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "malformed sync state", err)
	}
	return &state, nil
}

// Repository persists sync states in the reserved syncs soup of a store.
type Repository struct {
	store    core.SoupStore
	soupName string
}

// NewRepository creates a repository over soupName in store.
func NewRepository(store core.SoupStore, soupName string) *Repository {
	return &Repository{store: store, soupName: soupName}
}

// SoupName returns the syncs soup name.
func (r *Repository) SoupName() string {
	return r.soupName
}

// SetupSoupIfNeeded registers the syncs soup on first use.
func (r *Repository) SetupSoupIfNeeded(ctx context.Context) error {
	exists, err := r.store.HasSoup(ctx, r.soupName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return r.store.RegisterSoup(ctx, r.soupName, []core.IndexSpec{
		core.NewIndexSpec("type", core.IndexTypeString),
	})
}

// CreateSyncDown persists a new sync-down job in status NEW.
func (r *Repository) CreateSyncDown(ctx context.Context, target *Target, options *Options, soupName string) (*SyncState, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if options == nil {
		options = NewOptions(nil, MergeOverwrite)
	}
	state := &SyncState{
		Type:         SyncDown,
		Target:       target,
		Options:      options,
		SoupName:     soupName,
		Status:       StatusNew,
		MaxTimeStamp: UnchangedTimeStamp,
	}
	if err := r.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// CreateSyncUp persists a new sync-up job in status NEW.
func (r *Repository) CreateSyncUp(ctx context.Context, options *Options, soupName string) (*SyncState, error) {
	if options == nil || len(options.FieldList) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalid, "sync up requires a field list")
	}
	state := &SyncState{
		Type:         SyncUp,
		Options:      options,
		SoupName:     soupName,
		Status:       StatusNew,
		MaxTimeStamp: UnchangedTimeStamp,
	}
	if err := r.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save upserts the state and records its assigned id.
func (r *Repository) Save(ctx context.Context, state *SyncState) error {
	payload, err := state.ToMap()
	if err != nil {
		return err
	}
	stored, err := r.store.Upsert(ctx, r.soupName, payload, "")
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	if state.ID == 0 {
		saved, err := FromMap(stored)
		if err != nil {
			return err
		}
		state.ID = saved.ID
	}
	return nil
}

// ByID loads a state by its entry id.
func (r *Repository) ByID(ctx context.Context, id int64) (*SyncState, error) {
	entries, err := r.store.Retrieve(ctx, r.soupName, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "sync %d not found", id)
	}
	return FromMap(entries[0])
}
