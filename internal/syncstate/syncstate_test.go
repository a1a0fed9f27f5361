package syncstate

import (
	"context"
	"testing"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/database"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/store"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewSQLiteDatabase(database.MemoryPath, database.DriverModernc)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	s, err := store.New(ctx, db, nil)
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	repo := NewRepository(s, "syncs_soup")
	if err := repo.SetupSoupIfNeeded(ctx); err != nil {
		t.Fatalf("SetupSoupIfNeeded() failed: %v", err)
	}
	if err := repo.SetupSoupIfNeeded(ctx); err != nil {
		t.Fatalf("second SetupSoupIfNeeded() failed: %v", err)
	}
	return repo
}

func TestCreateAndLoadSyncDown(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	target := NewSOQLTarget("SELECT Id, Name, SystemModstamp FROM Contact")
	state, err := repo.CreateSyncDown(ctx, target, NewOptions(nil, MergeLeaveIfChanged), "contacts")
	if err != nil {
		t.Fatalf("CreateSyncDown() failed: %v", err)
	}
	if state.ID == 0 || state.Status != StatusNew || state.MaxTimeStamp != UnchangedTimeStamp {
		t.Fatalf("unexpected new state: %+v", state)
	}

	state.Status = StatusDone
	state.Progress = 100
	state.TotalSize = 4
	state.MaxTimeStamp = 1700000000000
	if err := repo.Save(ctx, state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := repo.ByID(ctx, state.ID)
	if err != nil {
		t.Fatalf("ByID() failed: %v", err)
	}
	if loaded.Type != SyncDown || !loaded.IsDone() || loaded.Progress != 100 || loaded.TotalSize != 4 {
		t.Errorf("loaded state = %+v", loaded)
	}
	if loaded.MaxTimeStamp != 1700000000000 {
		t.Errorf("MaxTimeStamp = %d", loaded.MaxTimeStamp)
	}
	if loaded.Target.QueryType != QuerySOQL || loaded.Target.Query != target.Query {
		t.Errorf("target = %+v", loaded.Target)
	}
	if loaded.Options.EffectiveMergeMode() != MergeLeaveIfChanged {
		t.Errorf("merge mode = %s", loaded.Options.MergeMode)
	}
}

func TestCreateSyncUpRequiresFieldList(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	if _, err := repo.CreateSyncUp(ctx, NewOptions(nil, ""), "contacts"); !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("CreateSyncUp(no fields) error = %v, want INVALID_INPUT", err)
	}
	state, err := repo.CreateSyncUp(ctx, NewOptions([]string{"Id", "Name"}, ""), "contacts")
	if err != nil {
		t.Fatalf("CreateSyncUp() failed: %v", err)
	}
	if state.Type != SyncUp || state.Options.MergeMode != MergeOverwrite {
		t.Errorf("sync up state = %+v", state)
	}
}

func TestByIDNotFound(t *testing.T) {
	repo := newRepository(t)
	if _, err := repo.ByID(context.Background(), 42); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("ByID(42) error = %v, want NOT_FOUND", err)
	}
}

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		target  *Target
		wantErr bool
	}{
		{NewSOQLTarget("SELECT Id FROM Account"), false},
		{NewSOSLTarget("FIND {Acme}"), false},
		{NewMRUTarget("Account", []string{"Id", "Name"}), false},
		{NewSOQLTarget("  "), true},
		{NewMRUTarget("Account", nil), true},
		{&Target{QueryType: "graph"}, true},
		{nil, true},
	}
	for _, tt := range tests {
		if err := tt.target.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.target, err, tt.wantErr)
		}
	}
}

func TestMapRoundTripKeepsWireNames(t *testing.T) {
	state := &SyncState{
		ID:       7,
		Type:     SyncDown,
		Target:   NewMRUTarget("Account", []string{"Id"}),
		SoupName: "accounts",
		Status:   StatusRunning,
	}
	payload, err := state.ToMap()
	if err != nil {
		t.Fatalf("ToMap() failed: %v", err)
	}
	target, _ := payload["target"].(map[string]interface{})
	if payload[core.SoupEntryID] != 7.0 || target["sobjectType"] != "Account" || target["type"] != "mru" {
		t.Errorf("payload = %v", payload)
	}

	clone := state.Clone()
	clone.Target.FieldList[0] = "Name"
	if state.Target.FieldList[0] != "Id" {
		t.Error("Clone() shares the field list")
	}
}
