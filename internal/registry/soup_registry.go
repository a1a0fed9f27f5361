package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/schema"
)

// SoupMetadata is the cached catalog entry of a registered soup.
type SoupMetadata struct {
	// SoupName is the user-facing name of the soup.
	SoupName string

	// SoupID is the row id of the soup in soup_names.
	SoupID int64

	// TableName is the physical table (TABLE_<SoupID>).
	TableName string

	// Specs are the index specs with their assigned column names.
	Specs []core.IndexSpec

	// Accessors are the compiled paths, parallel to Specs.
	Accessors []*schema.Accessor

	// LoadedAt is when the entry was cached.
	LoadedAt time.Time
}

// NewSoupMetadata builds a cache entry and compiles its paths.
func NewSoupMetadata(soupName string, soupID int64, tableName string, specs []core.IndexSpec) *SoupMetadata {
	accessors := make([]*schema.Accessor, len(specs))
	for i, spec := range specs {
		accessors[i] = schema.NewAccessor(spec.Path)
	}
	return &SoupMetadata{
		SoupName:  soupName,
		SoupID:    soupID,
		TableName: tableName,
		Specs:     specs,
		Accessors: accessors,
		LoadedAt:  time.Now(),
	}
}

// SpecForPath returns the index spec of a path, if the path is indexed.
func (m *SoupMetadata) SpecForPath(path string) (core.IndexSpec, bool) {
	for _, spec := range m.Specs {
		if spec.Path == path {
			return spec, true
		}
	}
	return core.IndexSpec{}, false
}

// SoupRegistry caches soup metadata per store instance.
// Entries are invalidated explicitly whenever the catalog changes.
type SoupRegistry struct {
	mu    sync.RWMutex
	soups map[string]*SoupMetadata
}

// NewSoupRegistry creates an empty soup cache.
func NewSoupRegistry() *SoupRegistry {
	return &SoupRegistry{
		soups: make(map[string]*SoupMetadata),
	}
}

// Put caches the metadata of a soup, replacing any previous entry.
func (sr *SoupRegistry) Put(metadata *SoupMetadata) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.soups[metadata.SoupName] = metadata
}

// Get returns the cached metadata of a soup.
func (sr *SoupRegistry) Get(soupName string) (*SoupMetadata, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	metadata, ok := sr.soups[soupName]
	return metadata, ok
}

// Invalidate drops the cached entry of a soup.
func (sr *SoupRegistry) Invalidate(soupName string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.soups, soupName)
}

// List returns the cached soup names in sorted order.
func (sr *SoupRegistry) List() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.soups))
	for name := range sr.soups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of cached soups.
func (sr *SoupRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.soups)
}

// Clear removes every cached entry.
func (sr *SoupRegistry) Clear() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.soups = make(map[string]*SoupMetadata)
}
