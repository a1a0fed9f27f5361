package core

import (
	"context"
	"time"
)

// SyncEvent is published every time a sync job persists a status or progress change.
type SyncEvent struct {
	// EventID uniquely identifies the event.
	EventID string `json:"eventId"`

	// AccountKey is the registry key of the owning sync manager.
	AccountKey string `json:"accountKey"`

	// SyncID is the soup entry id of the sync state.
	SyncID int64 `json:"syncId"`

	// Type is "syncDown" or "syncUp".
	Type string `json:"type"`

	// SoupName is the soup the job reads from or writes to.
	SoupName string `json:"soupName"`

	// Status is the job status after the change.
	Status string `json:"status"`

	// Progress is the percentage completed.
	Progress int `json:"progress"`

	// TotalSize is the number of records of the current run.
	TotalSize int `json:"totalSize"`

	// Timestamp is when the change was persisted.
	Timestamp time.Time `json:"timestamp"`
}

// EventQueue carries sync events from sync managers to observers.
type EventQueue interface {
	// Publish appends an event to the queue.
	Publish(ctx context.Context, event *SyncEvent) error

	// Poll removes and returns up to max events in publish order.
	// Returns an empty slice when nothing is available.
	Poll(ctx context.Context, max int) ([]*SyncEvent, error)

	// Size returns the approximate number of queued events.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
