package smartsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func memoryConfig() *Config {
	config := DefaultConfig()
	config.Database.Path = ":memory:"
	config.Remote.RequestsPerSecond = 0
	config.Events.Type = "memory"
	config.Dispatcher.JobsPerSecond = 1000
	return config
}

func TestDefaultConfigRoundTripsThroughYAML(t *testing.T) {
	data, err := DefaultConfig().GetYAML()
	if err != nil {
		t.Fatalf("GetYAML() failed: %v", err)
	}
	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() failed: %v", err)
	}
	if decoded.Remote.RequestTimeout != 30*time.Second || decoded.Events.KafkaConfig.MaxWait != 100*time.Millisecond {
		t.Errorf("durations lost in YAML: %+v", decoded.Remote)
	}
	if decoded.Sync.SyncsSoup != "syncs_soup" || decoded.Database.Type != "sqlite" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("remote:\n  type: dynamodb\n  dynamodb_config:\n    region: us-east-1\n    table_name: records\n"), 0644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(`{"sync":{"page_size":50,"syncs_soup":"jobs"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("LoadConfig(yaml) failed: %v", err)
	}
	if config.Remote.Type != "dynamodb" || config.Remote.DynamoDBConfig.TableName != "records" {
		t.Errorf("remote = %+v", config.Remote)
	}
	if config.Database.Type != "sqlite" {
		t.Errorf("defaults should survive partial files, database = %+v", config.Database)
	}

	config, err = LoadConfig(jsonPath)
	if err != nil {
		t.Fatalf("LoadConfig(json) failed: %v", err)
	}
	if config.Sync.PageSize != 50 || config.Sync.SyncsSoup != "jobs" {
		t.Errorf("sync = %+v", config.Sync)
	}

	if _, err := LoadConfig(filepath.Join(dir, "config.toml")); err == nil {
		t.Error("LoadConfig() should fail for a missing file")
	}
	tomlPath := filepath.Join(dir, "present.toml")
	os.WriteFile(tomlPath, []byte("x = 1"), 0644)
	if _, err := LoadConfig(tomlPath); err == nil {
		t.Error("LoadConfig() should reject unknown extensions")
	}
}

func TestClientSyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	rem := NewMemoryRemote()
	for _, name := range []string{"Ann", "Bob"} {
		if _, err := rem.Put(ctx, "Contact", map[string]interface{}{"Name": name}); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
	}

	c, err := NewClient(ctx, memoryConfig(), WithRemoteService(rem))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	defer c.Close()

	st := c.Store()
	if err := st.RegisterSoup(ctx, "Contacts", []IndexSpec{
		NewIndexSpec("Id", IndexString),
		NewIndexSpec("Name", IndexString),
		NewIndexSpec("__local__", IndexString),
	}); err != nil {
		t.Fatalf("RegisterSoup() failed: %v", err)
	}

	account := Account{UserID: "u1", OrgID: "o1"}
	mgr, err := c.SyncManager(account, "")
	if err != nil {
		t.Fatalf("SyncManager() failed: %v", err)
	}

	down, err := mgr.SyncDown(ctx, NewSOQLTarget("SELECT Id, Name FROM Contact"), nil, "Contacts", nil)
	if err != nil || !down.IsDone() {
		t.Fatalf("SyncDown() = %+v, %v", down, err)
	}

	if _, err := st.Upsert(ctx, "Contacts", MarkCreated(map[string]interface{}{"Name": "Cid"}, "Contact"), ""); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	up, err := mgr.SyncUp(ctx, NewOptions([]string{"Name"}, MergeLeaveIfChanged), "Contacts", nil)
	if err != nil || !up.IsDone() {
		t.Fatalf("SyncUp() = %+v, %v", up, err)
	}
	if got := rem.RequestCount("create"); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}

	n, err := st.CountQuery(ctx, BuildAllQuerySpec("Contacts", "", Ascending, 10))
	if err != nil || n != 3 {
		t.Errorf("CountQuery() = %d, %v; want 3", n, err)
	}

	events, err := c.PollEvents(ctx, 100)
	if err != nil || len(events) == 0 {
		t.Errorf("PollEvents() = %d events, %v", len(events), err)
	}

	c.ResetSyncManager(account, "")
	again, _ := c.SyncManager(account, "")
	if again == mgr {
		t.Error("ResetSyncManager() should drop the cached manager")
	}
}

func TestClientRunsSubmittedJobs(t *testing.T) {
	ctx := context.Background()
	rem := NewMemoryRemote()
	rem.Put(ctx, "Contact", map[string]interface{}{"Name": "Ann"})

	c, err := NewClient(ctx, memoryConfig(), WithRemoteService(rem))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	defer c.Close()

	if err := c.Store().RegisterSoup(ctx, "Contacts", []IndexSpec{NewIndexSpec("Id", IndexString)}); err != nil {
		t.Fatalf("RegisterSoup() failed: %v", err)
	}
	mgr, _ := c.SyncManager(Account{UserID: "u1", OrgID: "o1"}, "")

	done := make(chan *SyncState, 1)
	if err := c.Submit(&Job{
		Kind:     JobSyncDown,
		Manager:  mgr,
		Target:   NewSOQLTarget("SELECT Id FROM Contact"),
		SoupName: "Contacts",
		Done: func(state *SyncState, err error) {
			if err != nil {
				t.Errorf("job failed: %v", err)
			}
			done <- state
		},
	}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !c.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	select {
	case state := <-done:
		if state == nil || !state.IsDone() || state.TotalSize != 1 {
			t.Errorf("job state = %+v", state)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if c.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	d, ok := DispatcherOf(c)
	if !ok {
		t.Fatal("DispatcherOf() should find the dispatcher")
	}
	if processed, failed := d.Stats(); processed != 1 || failed != 0 {
		t.Errorf("Stats() = %d, %d; want 1, 0", processed, failed)
	}
}

func TestDispatcherSubmitValidation(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{QueueSize: 1})
	mgr := &SyncManager{}

	tests := []struct {
		name string
		job  *Job
	}{
		{"nil", nil},
		{"no manager", &Job{Kind: JobSyncUp}},
		{"bad kind", &Job{Kind: "sideways", Manager: mgr}},
	}
	for _, tt := range tests {
		if err := d.Submit(tt.job); err == nil {
			t.Errorf("%s: Submit() should fail", tt.name)
		}
	}

	if err := d.Submit(&Job{Kind: JobSyncUp, Manager: mgr}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if err := d.Submit(&Job{Kind: JobSyncUp, Manager: mgr}); err != ErrDispatcherFull {
		t.Errorf("Submit() on a full queue = %v, want ErrDispatcherFull", err)
	}
	if d.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", d.Pending())
	}
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{})
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() before Start = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 2; i++ {
		if err := d.Start(ctx); err != nil {
			t.Fatalf("Start() #%d failed: %v", i, err)
		}
		if err := d.Stop(); err != nil {
			t.Fatalf("Stop() #%d failed: %v", i, err)
		}
	}
	if d.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestNewClientRejectsNilConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), nil); err == nil {
		t.Error("NewClient(nil) should fail")
	}
}
