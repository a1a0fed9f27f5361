package remote

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/registry"
)

// Factory is the Strategy interface for creating remote clients.
// Each backend implements this interface and registers itself in init().
type Factory interface {
	// Create creates a remote client from the remote section of the configuration.
	Create(config *registry.InternalConfig) (core.RemoteClient, error)

	// Type returns the type identifier for this factory (e.g., "memory", "dynamodb").
	Type() string
}

var (
	// factoryRegistry stores all registered remote factories.
	factoryRegistry = make(map[string]Factory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a remote factory.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Create builds the remote client for config.Remote.Type and wraps it
// in the configured rate limit.
func Create(config *registry.InternalConfig) (core.RemoteClient, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Remote.Type == "" {
		return nil, fmt.Errorf("remote type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Remote.Type]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported remote type: %s", config.Remote.Type)
	}

	if validator, ok := registry.GetValidator(config.Remote.Type); ok {
		if err := validator.Validate(config); err != nil {
			return nil, fmt.Errorf("invalid configuration for %s: %w", config.Remote.Type, err)
		}
	}

	client, err := factory.Create(config)
	if err != nil {
		return nil, err
	}
	return NewRateLimitedClient(client, config.Remote.RequestsPerSecond, config.Remote.Burst, config.Remote.RequestTimeout), nil
}

// GetRegisteredTypes returns all registered remote types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MemoryFactory creates in-process remotes.
type MemoryFactory struct{}

func (f *MemoryFactory) Type() string { return "memory" }

func (f *MemoryFactory) Create(config *registry.InternalConfig) (core.RemoteClient, error) {
	return NewMemory(WithPageSize(config.Sync.PageSize)), nil
}

// MemoryConfigValidator accepts any memory remote configuration.
type MemoryConfigValidator struct{}

func (v *MemoryConfigValidator) Type() string { return "memory" }

func (v *MemoryConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Remote.Type != "memory" {
		return fmt.Errorf("invalid type for memory validator: %s", config.Remote.Type)
	}
	return nil
}

// DynamoDBFactory creates DynamoDB-backed remotes.
type DynamoDBFactory struct{}

func (f *DynamoDBFactory) Type() string { return "dynamodb" }

func (f *DynamoDBFactory) Create(config *registry.InternalConfig) (core.RemoteClient, error) {
	dc := config.Remote.DynamoDBConfig
	client, err := NewDynamoDB(DynamoDBConfig{
		Region:          dc.Region,
		TableName:       dc.TableName,
		Endpoint:        dc.Endpoint,
		AccessKeyID:     dc.AccessKeyID,
		SecretAccessKey: dc.SecretAccessKey,
	}, WithPageSize(config.Sync.PageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB remote: %w", err)
	}
	return client, nil
}

// DynamoDBConfigValidator validates the DynamoDB section of the remote configuration.
type DynamoDBConfigValidator struct{}

func (v *DynamoDBConfigValidator) Type() string { return "dynamodb" }

func (v *DynamoDBConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Remote.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB validator: %s", config.Remote.Type)
	}

	dynamoConfig := config.Remote.DynamoDBConfig
	if dynamoConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if dynamoConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if (dynamoConfig.AccessKeyID == "") != (dynamoConfig.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// init registers the built-in factories and validators.
func init() {
	RegisterFactory(&MemoryFactory{})
	RegisterFactory(&DynamoDBFactory{})

	registry.RegisterValidator(&MemoryConfigValidator{})
	registry.RegisterValidator(&DynamoDBConfigValidator{})
}
