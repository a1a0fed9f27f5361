package client

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/database"
	"github.com/rzpsarthak13/smartsync/internal/events"
	"github.com/rzpsarthak13/smartsync/internal/registry"
	"github.com/rzpsarthak13/smartsync/internal/remote"
	"github.com/rzpsarthak13/smartsync/internal/store"
	"github.com/rzpsarthak13/smartsync/internal/syncmgr"
)

// ClientImpl owns the database, the soup store, the remote client, the event
// queue and the sync managers built on top of them.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	database  core.Database
	store     *store.Store
	remote    core.RemoteClient
	events    core.EventQueue
	lifecycle *registry.LifecycleManager
	managers  *syncmgr.Registry
	closed    bool
}

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// Option customizes a ClientImpl before its connections are opened.
type Option func(*ClientImpl)

// WithRemote uses client instead of building one from the remote config section.
func WithRemote(client core.RemoteClient) Option {
	return func(c *ClientImpl) {
		c.remote = client
	}
}

// WithEvents uses queue instead of building one from the events config section.
func WithEvents(queue core.EventQueue) Option {
	return func(c *ClientImpl) {
		c.events = queue
	}
}

// NewClientImpl creates a new client implementation.
// It accepts a config provider to avoid import cycles.
func NewClientImpl(ctx context.Context, configProvider ConfigProvider, opts ...Option) (*ClientImpl, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client := &ClientImpl{
		configMgr: configMgr,
		lifecycle: registry.NewLifecycleManager(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if err := client.initializeConnections(ctx); err != nil {
		client.closeConnections()
		return nil, fmt.Errorf("failed to initialize connections: %w", err)
	}

	client.managers = syncmgr.NewRegistry(client.newSyncManager)
	return client, nil
}

// initializeConnections opens the database, the store, the remote and the event queue.
func (c *ClientImpl) initializeConnections(ctx context.Context) error {
	config := c.configMgr.GetConfig()

	db, err := openDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	c.database = db

	st, err := store.New(ctx, db, c.lifecycle)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	c.store = st

	if c.remote == nil {
		rc, err := remote.Create(config)
		if err != nil {
			return fmt.Errorf("failed to create remote client: %w", err)
		}
		c.remote = rc
	}

	if c.events == nil {
		queue, err := events.Create(config)
		if err != nil {
			return fmt.Errorf("failed to create event queue: %w", err)
		}
		c.events = queue
	}
	return nil
}

func openDatabase(config registry.InternalDatabaseConfig) (core.Database, error) {
	switch config.Type {
	case "sqlite":
		return database.NewSQLiteDatabase(config.Path, config.Driver)
	case "mysql":
		return database.NewMySQLDatabase(
			config.Host,
			config.Port,
			config.Database,
			config.Username,
			config.Password,
			config.MaxOpenConns,
			config.MaxIdleConns,
			config.ConnMaxLifetime,
			config.ConnMaxIdleTime,
			config.ConnectionTimeout,
		)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

func (c *ClientImpl) newSyncManager(account core.Account, communityID string) (*syncmgr.SyncManager, error) {
	config := c.configMgr.GetConfig()
	return syncmgr.NewSyncManager(context.Background(), account, communityID, c.store, c.remote, c.events, syncmgr.Config{
		PageSize:  config.Sync.PageSize,
		SyncsSoup: config.Sync.SyncsSoup,
	})
}

// Config returns the effective configuration.
func (c *ClientImpl) Config() *registry.InternalConfig {
	return c.configMgr.GetConfig()
}

// Store returns the soup store.
func (c *ClientImpl) Store() *store.Store {
	return c.store
}

// Remote returns the remote client.
func (c *ClientImpl) Remote() core.RemoteClient {
	return c.remote
}

// Events returns the event queue, or nil when events are disabled.
func (c *ClientImpl) Events() core.EventQueue {
	return c.events
}

// Lifecycle returns the soup lifecycle hooks.
func (c *ClientImpl) Lifecycle() *registry.LifecycleManager {
	return c.lifecycle
}

// Managers returns the sync manager registry.
func (c *ClientImpl) Managers() *syncmgr.Registry {
	return c.managers
}

// SyncManager returns the manager of account and communityID, creating it on first use.
func (c *ClientImpl) SyncManager(account core.Account, communityID string) (*syncmgr.SyncManager, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, fmt.Errorf("client is closed")
	}
	return c.managers.GetInstance(account, communityID)
}

// Close closes all connections and releases resources.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.managers != nil {
		c.managers.Clear()
	}
	return c.closeConnections()
}

func (c *ClientImpl) closeConnections() error {
	var errs []error

	if c.events != nil {
		if err := c.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event queue: %w", err))
		}
	}

	if c.remote != nil {
		if err := c.remote.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close remote client: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		log.Printf("[CLIENT] Errors during close: %v", errs)
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
