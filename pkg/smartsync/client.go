// Package smartsync is the public entry point: a soup store on SQLite or MySQL,
// and sync managers moving its records to and from a remote data service.
package smartsync

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/client"
	"github.com/rzpsarthak13/smartsync/internal/core"
)

// Client is the main interface of the library.
//
// Typical usage:
//
//	c, _ := smartsync.NewClient(ctx, config)
//	defer c.Close()
//
//	c.Store().RegisterSoup(ctx, "Contacts", specs)
//	mgr, _ := c.SyncManager(account, "")
//	mgr.SyncDown(ctx, smartsync.NewSOQLTarget("SELECT Id, Name FROM Contact"), nil, "Contacts", nil)
//
//	c.Start(ctx) // run submitted jobs in the background
//	c.Submit(&smartsync.Job{Kind: smartsync.JobSyncUp, Manager: mgr, ...})
type Client interface {
	// Store returns the soup store.
	Store() *Store

	// SyncManager returns the manager of an account and community, creating it on first use.
	// An empty communityID is the internal (non-community) scope.
	SyncManager(account Account, communityID string) (*SyncManager, error)

	// ResetSyncManager forgets the manager of an account and community.
	ResetSyncManager(account Account, communityID string)

	// PollEvents removes up to max sync events from the configured event queue.
	// Returns nothing when events are disabled.
	PollEvents(ctx context.Context, max int) ([]*SyncEvent, error)

	// Submit queues a sync job for the background dispatcher.
	Submit(job *Job) error

	// Start starts the background dispatcher. This is non-blocking.
	Start(ctx context.Context) error

	// Stop waits for the running job and stops the dispatcher.
	Stop() error

	// IsRunning returns whether the dispatcher is running.
	IsRunning() bool

	// Close stops the dispatcher and releases all connections.
	Close() error
}

// ClientOption customizes a client at construction.
type ClientOption func(*clientOptions)

type clientOptions struct {
	remote core.RemoteClient
}

// WithRemoteService uses an already built remote service, typically a seeded
// in-memory one, instead of the configured remote.
func WithRemoteService(service *RemoteService) ClientOption {
	return func(o *clientOptions) {
		if service != nil {
			o.remote = service
		}
	}
}

// clientWrapper wraps the internal client implementation to provide the public Client interface.
type clientWrapper struct {
	mu         sync.RWMutex
	impl       *client.ClientImpl
	config     *Config
	dispatcher *Dispatcher
	started    bool
}

// NewClient opens the store, the remote client and the event queue described by config.
func NewClient(ctx context.Context, config *Config, opts ...ClientOption) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	var implOpts []client.Option
	if o.remote != nil {
		implOpts = append(implOpts, client.WithRemote(o.remote))
	}

	impl, err := client.NewClientImpl(ctx, config, implOpts...)
	if err != nil {
		return nil, err
	}

	return &clientWrapper{
		impl:       impl,
		config:     config,
		dispatcher: NewDispatcher(config.Dispatcher),
	}, nil
}

func (cw *clientWrapper) Store() *Store {
	return cw.impl.Store()
}

func (cw *clientWrapper) SyncManager(account Account, communityID string) (*SyncManager, error) {
	return cw.impl.SyncManager(account, communityID)
}

func (cw *clientWrapper) ResetSyncManager(account Account, communityID string) {
	cw.impl.Managers().Reset(account, communityID)
}

func (cw *clientWrapper) PollEvents(ctx context.Context, max int) ([]*SyncEvent, error) {
	queue := cw.impl.Events()
	if queue == nil {
		return nil, nil
	}
	return queue.Poll(ctx, max)
}

func (cw *clientWrapper) Submit(job *Job) error {
	return cw.dispatcher.Submit(job)
}

func (cw *clientWrapper) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.started {
		return nil
	}
	if err := cw.dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	cw.started = true
	return nil
}

func (cw *clientWrapper) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.started {
		return nil
	}
	if err := cw.dispatcher.Stop(); err != nil {
		return fmt.Errorf("failed to stop dispatcher: %w", err)
	}
	cw.started = false
	return nil
}

func (cw *clientWrapper) IsRunning() bool {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.started
}

func (cw *clientWrapper) Close() error {
	if err := cw.Stop(); err != nil {
		log.Printf("[CLIENT] Warning: error stopping dispatcher: %v", err)
	}
	return cw.impl.Close()
}

// DispatcherOf returns the background job runner of c, if c was built by NewClient.
func DispatcherOf(c Client) (*Dispatcher, bool) {
	cw, ok := c.(*clientWrapper)
	if !ok {
		return nil, false
	}
	return cw.dispatcher, true
}
