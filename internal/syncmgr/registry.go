package syncmgr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// Factory builds the manager for an account and community.
type Factory func(account core.Account, communityID string) (*SyncManager, error)

// Registry holds exactly one SyncManager per account and community.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*SyncManager
	factory   Factory
}

// NewRegistry creates an empty registry that builds managers with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		instances: make(map[string]*SyncManager),
		factory:   factory,
	}
}

// GetInstance returns the manager for account and communityID, creating it on first use.
// Concurrent first calls build a single instance.
func (r *Registry) GetInstance(account core.Account, communityID string) (*SyncManager, error) {
	key := account.Key(communityID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[key]; ok {
		return existing, nil
	}
	if r.factory == nil {
		return nil, fmt.Errorf("no sync manager factory configured")
	}

	manager, err := r.factory(account, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync manager for %s: %w", key, err)
	}
	r.instances[key] = manager
	return manager, nil
}

// Lookup returns the manager for a registry key, if one exists.
func (r *Registry) Lookup(key string) (*SyncManager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.instances[key]
	return m, ok
}

// Reset forgets the manager of account and communityID. The next GetInstance builds a new one.
func (r *Registry) Reset(account core.Account, communityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, account.Key(communityID))
}

// Clear forgets every manager.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]*SyncManager)
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.instances))
	for k := range r.instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of managers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
