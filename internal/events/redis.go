package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// DefaultRedisKey is the list events are pushed to when no key is configured.
const DefaultRedisKey = "smartsync:events"

// RedisQueueConfig holds connection settings for the Redis event queue.
type RedisQueueConfig struct {
	Endpoints    []string
	ClusterMode  bool
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	Key          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisQueue implements core.EventQueue on a Redis list (RPUSH / LPOP).
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(config RedisQueueConfig) (*RedisQueue, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	var client redis.UniversalClient
	if config.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        config.Endpoints,
			Password:     config.Password,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			MaxRetries:   config.MaxRetries,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         config.Endpoints[0],
			Password:     config.Password,
			DB:           config.DB,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			MaxRetries:   config.MaxRetries,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		})
	}

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] Event queue connected to %v", config.Endpoints)
	return NewRedisQueueWithClient(client, config.Key), nil
}

// NewRedisQueueWithClient builds a queue on an existing client.
func NewRedisQueueWithClient(client redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

// Key returns the Redis list holding the events.
func (q *RedisQueue) Key() string {
	return q.key
}

// Publish appends an event to the list as JSON.
func (q *RedisQueue) Publish(ctx context.Context, event *core.SyncEvent) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	if err := prepare(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		log.Printf("[REDIS] ERROR: Failed to publish event for sync %d: %v", event.SyncID, err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Poll pops up to max events from the head of the list.
func (q *RedisQueue) Poll(ctx context.Context, max int) ([]*core.SyncEvent, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}

	if max <= 0 {
		max = DefaultPollSize
	}

	events := make([]*core.SyncEvent, 0, max)
	for i := 0; i < max; i++ {
		data, err := q.client.LPop(ctx, q.key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return events, fmt.Errorf("failed to poll events: %w", err)
		}

		var event core.SyncEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[REDIS] Skipping malformed event: %v", err)
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Size returns the list length, or 0 when it cannot be read.
func (q *RedisQueue) Size() int {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return 0
	}

	n, err := q.client.LLen(context.Background(), q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close closes the Redis client.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	return q.client.Close()
}
