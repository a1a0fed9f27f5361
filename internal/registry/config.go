package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigValidator is the Strategy interface for validating configuration.
// Each remote backend (memory, DynamoDB) provides its own validator for
// its backend-specific section.
type ConfigValidator interface {
	// Validate validates the remote section of the configuration.
	Validate(config *InternalConfig) error

	// Type returns the remote type this validator handles (e.g., "memory", "dynamodb").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry provides methods to register and retrieve config validators.
type ValidationStrategyRegistry struct{}

// Register registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// Get retrieves a validator by type.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisterValidator registers a validator in the default registry.
// This is the preferred way to register validators from init() functions.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator retrieves a validator by type from the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(validatorType)
}

var defaultValidationRegistry = &ValidationStrategyRegistry{}

// Default values shared with the public config.
const (
	DefaultPageSize  = 2000
	DefaultSyncsSoup = "syncs_soup"
)

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultInternalConfig(),
	}
}

// DefaultInternalConfig returns a configuration backed by a local SQLite file,
// the in-memory remote and no event queue.
func DefaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Database: InternalDatabaseConfig{
			Type:              "sqlite",
			Driver:            "modernc",
			Path:              "data/smartstore.db",
			Port:              3306,
			MaxOpenConns:      10,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Remote: InternalRemoteConfig{
			Type:              "memory",
			RequestsPerSecond: 25,
			Burst:             5,
			RequestTimeout:    30 * time.Second,
		},
		Sync: InternalSyncConfig{
			PageSize:  DefaultPageSize,
			SyncsSoup: DefaultSyncsSoup,
		},
		Events: InternalEventsConfig{
			Type:       "none",
			BufferSize: 1000,
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 2,
				Key:          "smartsync:events",
				MaxRetries:   3,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			KafkaConfig: InternalKafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "smartsync-events",
				GroupID:         "smartsync-events",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern: SMARTSYNC_<SECTION>_<KEY>
// Examples:
//   - SMARTSYNC_DATABASE_TYPE=mysql
//   - SMARTSYNC_DATABASE_PATH=/var/lib/smartsync/store.db
//   - SMARTSYNC_REMOTE_TYPE=dynamodb
//   - SMARTSYNC_DYNAMODB_TABLE_NAME=records
//   - SMARTSYNC_EVENTS_TYPE=redis
func (cm *ConfigManager) LoadFromEnv() error {
	config := DefaultInternalConfig()

	// Database configuration
	envString("SMARTSYNC_DATABASE_TYPE", &config.Database.Type)
	envString("SMARTSYNC_DATABASE_DRIVER", &config.Database.Driver)
	envString("SMARTSYNC_DATABASE_PATH", &config.Database.Path)
	envString("SMARTSYNC_DATABASE_HOST", &config.Database.Host)
	envInt("SMARTSYNC_DATABASE_PORT", &config.Database.Port)
	envString("SMARTSYNC_DATABASE_DATABASE", &config.Database.Database)
	envString("SMARTSYNC_DATABASE_USERNAME", &config.Database.Username)
	envString("SMARTSYNC_DATABASE_PASSWORD", &config.Database.Password)
	envInt("SMARTSYNC_DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	envInt("SMARTSYNC_DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)

	// Remote configuration
	envString("SMARTSYNC_REMOTE_TYPE", &config.Remote.Type)
	if val := os.Getenv("SMARTSYNC_REMOTE_REQUESTS_PER_SECOND"); val != "" {
		var rps float64
		if _, err := fmt.Sscanf(val, "%f", &rps); err == nil {
			config.Remote.RequestsPerSecond = rps
		}
	}
	envInt("SMARTSYNC_REMOTE_BURST", &config.Remote.Burst)
	if val := os.Getenv("SMARTSYNC_REMOTE_REQUEST_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			config.Remote.RequestTimeout = timeout
		}
	}
	envString("SMARTSYNC_DYNAMODB_REGION", &config.Remote.DynamoDBConfig.Region)
	envString("SMARTSYNC_DYNAMODB_TABLE_NAME", &config.Remote.DynamoDBConfig.TableName)
	envString("SMARTSYNC_DYNAMODB_ENDPOINT", &config.Remote.DynamoDBConfig.Endpoint)

	// Sync configuration
	envInt("SMARTSYNC_SYNC_PAGE_SIZE", &config.Sync.PageSize)
	envString("SMARTSYNC_SYNC_SYNCS_SOUP", &config.Sync.SyncsSoup)

	// Events configuration
	envString("SMARTSYNC_EVENTS_TYPE", &config.Events.Type)
	envInt("SMARTSYNC_EVENTS_BUFFER_SIZE", &config.Events.BufferSize)
	if val := os.Getenv("SMARTSYNC_EVENTS_REDIS_ENDPOINTS"); val != "" {
		config.Events.RedisConfig.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("SMARTSYNC_EVENTS_REDIS_CLUSTER_MODE"); val != "" {
		config.Events.RedisConfig.ClusterMode = (val == "true" || val == "1")
	}
	envString("SMARTSYNC_EVENTS_REDIS_PASSWORD", &config.Events.RedisConfig.Password)
	if val := os.Getenv("SMARTSYNC_EVENTS_KAFKA_BROKERS"); val != "" {
		config.Events.KafkaConfig.Brokers = strings.Split(val, ",")
	}
	envString("SMARTSYNC_EVENTS_KAFKA_TOPIC", &config.Events.KafkaConfig.Topic)

	return cm.apply(config)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			*dst = n
		}
	}
}

func (cm *ConfigManager) apply(config *InternalConfig) error {
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// The remote section is validated by the strategy registered for its type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	// Validate Database configuration
	switch config.Database.Type {
	case "":
		return fmt.Errorf("database.type is required")
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
		if d := config.Database.Driver; d != "" && d != "modernc" && d != "ncruces" {
			return fmt.Errorf("database.driver must be 'modernc' or 'ncruces'")
		}
	case "mysql":
		if config.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if config.Database.Port <= 0 || config.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database.username is required")
		}
		if config.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be greater than 0")
		}
	default:
		return fmt.Errorf("database.type must be 'sqlite' or 'mysql'")
	}

	// Validate Remote configuration using Strategy pattern
	if config.Remote.Type == "" {
		return fmt.Errorf("remote.type is required")
	}
	validator, exists := GetValidator(config.Remote.Type)
	if !exists {
		return fmt.Errorf("unsupported remote type: %s", config.Remote.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("remote validation failed: %w", err)
	}
	if config.Remote.RequestsPerSecond < 0 {
		return fmt.Errorf("remote.requests_per_second must be non-negative")
	}
	if config.Remote.RequestsPerSecond > 0 && config.Remote.Burst <= 0 {
		return fmt.Errorf("remote.burst must be greater than 0 when rate limiting is enabled")
	}

	// Validate Sync configuration
	if config.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be greater than 0")
	}
	if config.Sync.SyncsSoup == "" {
		return fmt.Errorf("sync.syncs_soup is required")
	}

	// Validate Events configuration
	switch config.Events.Type {
	case "", "none", "memory":
	case "redis":
		if len(config.Events.RedisConfig.Endpoints) == 0 {
			return fmt.Errorf("redis_config.endpoints is required when events.type is 'redis'")
		}
	case "kafka":
		if len(config.Events.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("kafka_config.brokers is required when events.type is 'kafka'")
		}
		if config.Events.KafkaConfig.Topic == "" {
			return fmt.Errorf("kafka_config.topic is required when events.type is 'kafka'")
		}
	default:
		return fmt.Errorf("events.type must be 'none', 'memory', 'redis', or 'kafka'")
	}
	if config.Events.BufferSize < 0 {
		return fmt.Errorf("events.buffer_size must be non-negative")
	}

	return nil
}
