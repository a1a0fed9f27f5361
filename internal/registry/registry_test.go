package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

type stubValidator struct {
	kind string
	fn   func(*InternalConfig) error
}

func (v stubValidator) Type() string { return v.kind }

func (v stubValidator) Validate(c *InternalConfig) error {
	if v.fn == nil {
		return nil
	}
	return v.fn(c)
}

func init() {
	RegisterValidator(stubValidator{kind: "memory"})
	RegisterValidator(stubValidator{kind: "dynamodb", fn: func(c *InternalConfig) error {
		if c.Remote.DynamoDBConfig.TableName == "" {
			return errors.New("table_name is required")
		}
		return nil
	}})
}

func TestDefaultConfigIsValid(t *testing.T) {
	cm := NewConfigManager()
	if err := cm.validateConfig(cm.GetConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cm.GetConfig().Sync.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", cm.GetConfig().Sync.PageSize, DefaultPageSize)
	}
}

func TestLoadFromYAML(t *testing.T) {
	data := []byte(`
database:
  type: sqlite
  driver: ncruces
  path: /tmp/store.db
remote:
  type: dynamodb
  requests_per_second: 10
  burst: 2
  dynamodb_config:
    region: us-east-1
    table_name: records
sync:
  page_size: 50
  syncs_soup: syncs_soup
events:
  type: kafka
  kafka_config:
    brokers: ["k1:9092"]
    topic: sync-events
    batch_timeout: 20ms
`)
	cm := NewConfigManager()
	if err := cm.LoadFromYAML(data); err != nil {
		t.Fatalf("LoadFromYAML() failed: %v", err)
	}
	c := cm.GetConfig()
	if c.Database.Driver != "ncruces" || c.Remote.DynamoDBConfig.TableName != "records" {
		t.Errorf("unexpected config: %+v", c)
	}
	if c.Sync.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", c.Sync.PageSize)
	}
	if c.Events.KafkaConfig.BatchTimeout != 20*time.Millisecond {
		t.Errorf("BatchTimeout = %v, want 20ms", c.Events.KafkaConfig.BatchTimeout)
	}
	// Unset fields keep their defaults
	if c.Remote.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want default 30s", c.Remote.RequestTimeout)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InternalConfig)
	}{
		{"no database type", func(c *InternalConfig) { c.Database.Type = "" }},
		{"postgres", func(c *InternalConfig) { c.Database.Type = "postgresql" }},
		{"sqlite without path", func(c *InternalConfig) { c.Database.Path = "" }},
		{"bad driver", func(c *InternalConfig) { c.Database.Driver = "cgo" }},
		{"mysql without host", func(c *InternalConfig) { c.Database.Type = "mysql"; c.Database.Host = "" }},
		{"unknown remote", func(c *InternalConfig) { c.Remote.Type = "soap" }},
		{"dynamodb without table", func(c *InternalConfig) { c.Remote.Type = "dynamodb" }},
		{"zero burst", func(c *InternalConfig) { c.Remote.Burst = 0 }},
		{"zero page size", func(c *InternalConfig) { c.Sync.PageSize = 0 }},
		{"unknown events", func(c *InternalConfig) { c.Events.Type = "nats" }},
		{"kafka without topic", func(c *InternalConfig) { c.Events.Type = "kafka"; c.Events.KafkaConfig.Topic = "" }},
	}

	cm := NewConfigManager()
	for _, tt := range tests {
		config := DefaultInternalConfig()
		tt.mutate(config)
		if err := cm.validateConfig(config); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SMARTSYNC_DATABASE_PATH", "/var/lib/smartsync/store.db")
	t.Setenv("SMARTSYNC_SYNC_PAGE_SIZE", "25")
	t.Setenv("SMARTSYNC_EVENTS_TYPE", "redis")
	t.Setenv("SMARTSYNC_EVENTS_REDIS_ENDPOINTS", "r1:6379,r2:6379")
	t.Setenv("SMARTSYNC_REMOTE_REQUESTS_PER_SECOND", "2.5")

	cm := NewConfigManager()
	if err := cm.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	c := cm.GetConfig()
	if c.Database.Path != "/var/lib/smartsync/store.db" || c.Sync.PageSize != 25 {
		t.Errorf("unexpected config: %+v", c)
	}
	if len(c.Events.RedisConfig.Endpoints) != 2 || c.Remote.RequestsPerSecond != 2.5 {
		t.Errorf("unexpected events/remote config: %+v %+v", c.Events, c.Remote)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(`{"sync":{"page_size":7,"syncs_soup":"syncs"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cm := NewConfigManager()
	if err := cm.LoadFromFile(jsonPath); err != nil {
		t.Fatalf("LoadFromFile(json) failed: %v", err)
	}
	if cm.GetConfig().Sync.PageSize != 7 || cm.GetConfig().Sync.SyncsSoup != "syncs" {
		t.Errorf("unexpected sync config: %+v", cm.GetConfig().Sync)
	}

	if err := cm.LoadFromFile(filepath.Join(dir, "config.toml")); err == nil {
		t.Error("expected error for missing/unsupported file")
	}
}

func TestSoupRegistry(t *testing.T) {
	sr := NewSoupRegistry()
	specs := []core.IndexSpec{{Path: "Owner.Name", Type: core.IndexTypeString, ColumnName: "TABLE_1_0"}}
	sr.Put(NewSoupMetadata("contacts", 1, "TABLE_1", specs))
	sr.Put(NewSoupMetadata("accounts", 2, "TABLE_2", nil))

	meta, ok := sr.Get("contacts")
	if !ok {
		t.Fatal("contacts not cached")
	}
	if len(meta.Accessors) != 1 || meta.Accessors[0].Path() != "Owner.Name" {
		t.Errorf("accessors not compiled: %+v", meta.Accessors)
	}
	if spec, ok := meta.SpecForPath("Owner.Name"); !ok || spec.ColumnName != "TABLE_1_0" {
		t.Errorf("SpecForPath() = %+v, %v", spec, ok)
	}
	if _, ok := meta.SpecForPath("Email"); ok {
		t.Error("Email should not be indexed")
	}

	if names := sr.List(); len(names) != 2 || names[0] != "accounts" {
		t.Errorf("List() = %v", names)
	}
	sr.Invalidate("contacts")
	if _, ok := sr.Get("contacts"); ok {
		t.Error("contacts should be invalidated")
	}
	sr.Clear()
	if sr.Count() != 0 {
		t.Errorf("Count() = %d after Clear", sr.Count())
	}
}

func TestLifecycleHooks(t *testing.T) {
	lm := NewLifecycleManager()
	var calls []string
	lm.RegisterHook(LifecycleHookFunc{
		OnRegisterFunc: func(ctx context.Context, soupName string, specs []core.IndexSpec) error {
			calls = append(calls, "register:"+soupName)
			return nil
		},
	})
	lm.RegisterHook(LifecycleHookFunc{
		OnDropFunc: func(ctx context.Context, soupName string) error {
			if soupName == "pinned" {
				return errors.New("pinned soups cannot be dropped")
			}
			calls = append(calls, "drop:"+soupName)
			return nil
		},
	})

	ctx := context.Background()
	if err := lm.ExecuteRegisterHooks(ctx, "contacts", nil); err != nil {
		t.Fatalf("ExecuteRegisterHooks() failed: %v", err)
	}
	if err := lm.ExecuteDropHooks(ctx, "contacts"); err != nil {
		t.Fatalf("ExecuteDropHooks() failed: %v", err)
	}
	if err := lm.ExecuteDropHooks(ctx, "pinned"); err == nil {
		t.Error("expected drop hook error")
	}
	if len(calls) != 2 || calls[0] != "register:contacts" || calls[1] != "drop:contacts" {
		t.Errorf("calls = %v", calls)
	}
	if lm.HookCount() != 2 {
		t.Errorf("HookCount() = %d", lm.HookCount())
	}
	lm.ClearHooks()
	if lm.HookCount() != 0 {
		t.Errorf("HookCount() = %d after ClearHooks", lm.HookCount())
	}
}
