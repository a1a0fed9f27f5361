package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// DefaultKafkaGroupID is the consumer group used when none is configured.
const DefaultKafkaGroupID = "smartsync-events"

// KafkaQueueConfig holds configuration for the Kafka event queue.
type KafkaQueueConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	BatchSize       int
	BatchTimeout    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	RequiredAcks    int // 0, 1, or -1 (all)
	MaxMessageBytes int
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

// KafkaQueue implements core.EventQueue on a Kafka topic.
// Events are keyed by soup name so each soup's events stay ordered within a partition.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	topic   string
	groupID string
	readTTL time.Duration

	mu     sync.RWMutex
	closed bool
	size   int // Approximate; Kafka has no cheap queue length
}

// NewKafkaQueue creates the producer and consumer for a topic.
func NewKafkaQueue(config KafkaQueueConfig) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = DefaultKafkaGroupID
	}
	readTTL := config.ReadTimeout
	if readTTL <= 0 {
		readTTL = 5 * time.Second
	}

	log.Printf("[KAFKA] Initializing event queue on topic %s (brokers: %v, group: %s)",
		config.Topic, config.Brokers, config.GroupID)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		BatchBytes:   int64(config.MaxMessageBytes),
		MaxAttempts:  3,
		Async:        false,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	return &KafkaQueue{
		writer:  writer,
		reader:  reader,
		topic:   config.Topic,
		groupID: config.GroupID,
		readTTL: readTTL,
	}, nil
}

// eventMessage encodes an event as a Kafka message.
func eventMessage(event *core.SyncEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal sync event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.SoupName),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
			{Key: "sync_id", Value: []byte(strconv.FormatInt(event.SyncID, 10))},
		},
	}, nil
}

// Publish produces one event synchronously.
func (q *KafkaQueue) Publish(ctx context.Context, event *core.SyncEvent) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	if err := prepare(event); err != nil {
		return err
	}

	message, err := eventMessage(event)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to write event to topic %s: %v (Duration: %v)", q.topic, err, time.Since(start))
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()
	return nil
}

// Poll consumes up to max events, committing each offset as it is read.
func (q *KafkaQueue) Poll(ctx context.Context, max int) ([]*core.SyncEvent, error) {
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
		readCtx, cancel := context.WithTimeout(ctx, q.readTTL)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			log.Printf("[KAFKA] ERROR: Failed to read from topic %s: %v", q.topic, err)
			break
		}

		var event core.SyncEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("[KAFKA] Skipping malformed event (Partition: %d, Offset: %d): %v", message.Partition, message.Offset, err)
		} else {
			events = append(events, &event)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			log.Printf("[KAFKA] WARNING: Failed to commit offset (Partition: %d, Offset: %d): %v",
				message.Partition, message.Offset, err)
		}
	}

	if len(events) > 0 {
		q.mu.Lock()
		q.size -= len(events)
		if q.size < 0 {
			q.size = 0
		}
		q.mu.Unlock()
	}
	return events, nil
}

// Size returns the approximate number of unconsumed events produced by this queue.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the producer and the consumer.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to close writer: %v", err)
	}
	if err := q.reader.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to close reader: %v", err)
		return err
	}
	return nil
}
