package registry

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// LifecycleHook is called synchronously around soup registration and drop.
type LifecycleHook interface {
	// OnRegister is called before a new soup is created.
	// If this hook returns an error, registration fails and nothing is created.
	OnRegister(ctx context.Context, soupName string, specs []core.IndexSpec) error

	// OnDrop is called before a soup is dropped.
	// If this hook returns an error, the soup is kept.
	OnDrop(ctx context.Context, soupName string) error
}

// LifecycleHookFunc adapts plain functions to LifecycleHook. Nil functions are no-ops.
type LifecycleHookFunc struct {
	OnRegisterFunc func(ctx context.Context, soupName string, specs []core.IndexSpec) error
	OnDropFunc     func(ctx context.Context, soupName string) error
}

// OnRegister calls the OnRegisterFunc if it's not nil.
func (f LifecycleHookFunc) OnRegister(ctx context.Context, soupName string, specs []core.IndexSpec) error {
	if f.OnRegisterFunc != nil {
		return f.OnRegisterFunc(ctx, soupName, specs)
	}
	return nil
}

// OnDrop calls the OnDropFunc if it's not nil.
func (f LifecycleHookFunc) OnDrop(ctx context.Context, soupName string) error {
	if f.OnDropFunc != nil {
		return f.OnDropFunc(ctx, soupName)
	}
	return nil
}

// LifecycleManager manages lifecycle hooks for soups.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		hooks: make([]LifecycleHook, 0),
	}
}

// RegisterHook adds a hook. Hooks are executed in the order they were registered.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteRegisterHooks executes all register hooks in order, stopping at the first error.
func (lm *LifecycleManager) ExecuteRegisterHooks(ctx context.Context, soupName string, specs []core.IndexSpec) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnRegister(ctx, soupName, specs); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteDropHooks executes all drop hooks in order, stopping at the first error.
func (lm *LifecycleManager) ExecuteDropHooks(ctx context.Context, soupName string) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnDrop(ctx, soupName); err != nil {
			return err
		}
	}
	return nil
}

// ClearHooks removes all registered hooks.
func (lm *LifecycleManager) ClearHooks() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = make([]LifecycleHook, 0)
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
