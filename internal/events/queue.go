// Package events carries sync status changes to observers over a pluggable queue.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/registry"
)

var (
	// ErrQueueClosed is returned when publishing to or polling a closed queue.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrQueueFull is returned when a bounded queue cannot take another event.
	ErrQueueFull = errors.New("event queue is full")

	// ErrInvalidEvent is returned for nil events or events without an owner.
	ErrInvalidEvent = errors.New("invalid sync event")
)

// DefaultPollSize is used when Poll is called with a non-positive max.
const DefaultPollSize = 100

// prepare validates an event and fills its id and timestamp.
func prepare(event *core.SyncEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.SoupName == "" {
		return fmt.Errorf("%w: soup name is required", ErrInvalidEvent)
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return nil
}

// Create builds the queue selected by config.Events.Type.
// "none" (or empty) yields a nil queue: events are not published.
func Create(config *registry.InternalConfig) (core.EventQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	ec := config.Events

	switch ec.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryQueue(ec.BufferSize), nil
	case "redis":
		rc := ec.RedisConfig
		queue, err := NewRedisQueue(RedisQueueConfig{
			Endpoints:    rc.Endpoints,
			ClusterMode:  rc.ClusterMode,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			MaxRetries:   rc.MaxRetries,
			Key:          rc.Key,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis event queue: %w", err)
		}
		return queue, nil
	case "kafka":
		kc := ec.KafkaConfig
		queue, err := NewKafkaQueue(KafkaQueueConfig{
			Brokers:         kc.Brokers,
			Topic:           kc.Topic,
			GroupID:         kc.GroupID,
			BatchSize:       kc.BatchSize,
			BatchTimeout:    kc.BatchTimeout,
			WriteTimeout:    kc.WriteTimeout,
			ReadTimeout:     kc.ReadTimeout,
			RequiredAcks:    kc.RequiredAcks,
			MaxMessageBytes: kc.MaxMessageBytes,
			MinBytes:        kc.MinBytes,
			MaxBytes:        kc.MaxBytes,
			MaxWait:         kc.MaxWait,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka event queue: %w", err)
		}
		return queue, nil
	default:
		return nil, fmt.Errorf("unsupported events type: %s", ec.Type)
	}
}
