package remote

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps remote objects in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]map[string]*Object
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]map[string]*Object)}
}

// NewMemory creates a Service over a fresh in-memory backend.
func NewMemory(opts ...Option) *Service {
	return newService("REMOTE", NewMemoryBackend(), opts...)
}

func (m *MemoryBackend) Scan(ctx context.Context, objectType string) ([]*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Object
	for t, byID := range m.objects {
		if objectType != "" && t != objectType {
			continue
		}
		for _, o := range byID {
			out = append(out, o.clone())
		}
	}
	return out, nil
}

func (m *MemoryBackend) Get(ctx context.Context, objectType, id string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o, ok := m.objects[objectType][id]; ok {
		return o.clone(), nil
	}
	return nil, nil
}

func (m *MemoryBackend) Put(ctx context.Context, obj *Object, mustNotExist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.objects[obj.Type]
	if !ok {
		byID = make(map[string]*Object)
		m.objects[obj.Type] = byID
	}
	if _, exists := byID[obj.ID]; exists && mustNotExist {
		return fmt.Errorf("%s %s already exists", obj.Type, obj.ID)
	}
	byID[obj.ID] = obj.clone()
	return nil
}

func (m *MemoryBackend) Remove(ctx context.Context, objectType, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[objectType][id]; !ok {
		return false, nil
	}
	delete(m.objects[objectType], id)
	return true, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
