package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/registry"
)

func TestMemoryQueuePublishPoll(t *testing.T) {
	q := NewMemoryQueue(10)
	defer q.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := q.Publish(ctx, &core.SyncEvent{SyncID: int64(i), SoupName: "Contacts", Status: "RUNNING"}); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}
	if q.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", q.Size())
	}

	events, err := q.Poll(ctx, 2)
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if len(events) != 2 || events[0].SyncID != 1 || events[1].SyncID != 2 {
		t.Fatalf("Poll(2) = %+v", events)
	}
	if events[0].EventID == "" || events[0].Timestamp.IsZero() {
		t.Error("Publish should assign an event id and timestamp")
	}

	events, _ = q.Poll(ctx, 0)
	if len(events) != 1 || events[0].SyncID != 3 {
		t.Errorf("Poll(0) = %+v", events)
	}
	events, _ = q.Poll(ctx, 5)
	if len(events) != 0 {
		t.Errorf("Poll() on empty queue = %d events", len(events))
	}
}

func TestMemoryQueueRejects(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if err := q.Publish(ctx, nil); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish(nil) = %v, want ErrInvalidEvent", err)
	}
	if err := q.Publish(ctx, &core.SyncEvent{}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish(no soup) = %v, want ErrInvalidEvent", err)
	}
	if err := q.Publish(ctx, &core.SyncEvent{SoupName: "a"}); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if err := q.Publish(ctx, &core.SyncEvent{SoupName: "a"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Publish() on full queue = %v, want ErrQueueFull", err)
	}

	if err := q.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := q.Publish(ctx, &core.SyncEvent{SoupName: "a"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish() after Close = %v, want ErrQueueClosed", err)
	}

	events, err := q.Poll(ctx, 10)
	if err != nil || len(events) != 1 {
		t.Errorf("Poll() after Close = %d events, %v; want the buffered event", len(events), err)
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*registry.InternalEventsConfig)
		wantNil  bool
		wantType string
		wantErr  bool
	}{
		{"none", func(c *registry.InternalEventsConfig) { c.Type = "none" }, true, "", false},
		{"empty", func(c *registry.InternalEventsConfig) { c.Type = "" }, true, "", false},
		{"memory", func(c *registry.InternalEventsConfig) { c.Type = "memory" }, false, "memory", false},
		{"redis without endpoints", func(c *registry.InternalEventsConfig) {
			c.Type = "redis"
			c.RedisConfig.Endpoints = nil
		}, false, "", true},
		{"kafka without brokers", func(c *registry.InternalEventsConfig) {
			c.Type = "kafka"
			c.KafkaConfig.Brokers = nil
		}, false, "", true},
		{"unknown", func(c *registry.InternalEventsConfig) { c.Type = "carrier-pigeon" }, false, "", true},
	}

	for _, tt := range tests {
		config := registry.DefaultInternalConfig()
		tt.mutate(&config.Events)

		queue, err := Create(config)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Create() error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if (queue == nil) != tt.wantNil {
			t.Errorf("%s: Create() = %v, wantNil %v", tt.name, queue, tt.wantNil)
		}
		if tt.wantType == "memory" {
			if _, ok := queue.(*MemoryQueue); !ok {
				t.Errorf("%s: Create() = %T, want *MemoryQueue", tt.name, queue)
			}
			queue.Close()
		}
	}
}

func TestKafkaQueueConfigValidation(t *testing.T) {
	if _, err := NewKafkaQueue(KafkaQueueConfig{Topic: "t"}); err == nil {
		t.Error("NewKafkaQueue() without brokers should fail")
	}
	if _, err := NewKafkaQueue(KafkaQueueConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("NewKafkaQueue() without topic should fail")
	}
}

func TestEventMessage(t *testing.T) {
	event := &core.SyncEvent{EventID: "e1", SyncID: 42, SoupName: "Contacts", Status: "DONE", Progress: 100}
	msg, err := eventMessage(event)
	if err != nil {
		t.Fatalf("eventMessage() failed: %v", err)
	}
	if string(msg.Key) != "Contacts" {
		t.Errorf("Key = %q, want Contacts", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["status"] != "DONE" || headers["sync_id"] != "42" {
		t.Errorf("Headers = %v", headers)
	}

	var decoded core.SyncEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("Value is not JSON: %v", err)
	}
	if decoded.SyncID != 42 || decoded.Progress != 100 || decoded.EventID != "e1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestRedisQueueConfigValidation(t *testing.T) {
	if _, err := NewRedisQueue(RedisQueueConfig{}); err == nil {
		t.Error("NewRedisQueue() without endpoints should fail")
	}
	q := NewRedisQueueWithClient(nil, "")
	if q.Key() != DefaultRedisKey {
		t.Errorf("Key() = %q, want %q", q.Key(), DefaultRedisKey)
	}
}
