package smartsync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration for the smartsync client.
type Config struct {
	// Database contains configuration for the local soup database.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Remote contains configuration for the remote data service.
	Remote RemoteConfig `yaml:"remote" json:"remote"`

	// Sync contains sync engine settings.
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Events contains the sync event queue configuration.
	Events EventsConfig `yaml:"events" json:"events"`

	// Dispatcher contains the background sync job runner settings.
	Dispatcher DispatcherConfig `yaml:"dispatcher" json:"dispatcher"`
}

// DatabaseConfig contains configuration for the local soup database.
type DatabaseConfig struct {
	// Type specifies the database type: "sqlite" or "mysql".
	Type string `yaml:"type" json:"type"`

	// Driver selects the SQLite driver: "modernc" (pure Go) or "ncruces" (wasm).
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`

	// Path is the SQLite database file. Use ":memory:" for a private in-memory store.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Host is the MySQL host address.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the MySQL port number.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Database is the MySQL database name.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Username is the MySQL username.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// Password is the MySQL password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`

	// ConnectionTimeout is the timeout for establishing database connections.
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// RemoteConfig contains configuration for the remote data service.
type RemoteConfig struct {
	// Type specifies the remote backend: "memory" or "dynamodb".
	Type string `yaml:"type" json:"type"`

	// DynamoDBConfig is used when Type is "dynamodb".
	DynamoDBConfig DynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`

	// RequestsPerSecond caps calls to the remote. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`

	// Burst is the number of requests allowed above the steady rate.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`

	// RequestTimeout bounds every remote call.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
}

// DynamoDBConfig contains the DynamoDB table backing the remote.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// SyncConfig contains sync engine settings.
type SyncConfig struct {
	// PageSize is the page size used when scanning local soups.
	PageSize int `yaml:"page_size" json:"page_size"`

	// SyncsSoup is the reserved soup holding persisted sync states.
	SyncsSoup string `yaml:"syncs_soup" json:"syncs_soup"`
}

// EventsConfig contains the sync event queue configuration.
type EventsConfig struct {
	// Type is "none", "memory", "redis" or "kafka".
	Type string `yaml:"type" json:"type"`

	// BufferSize is the capacity of the memory queue.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`

	RedisConfig RedisConfig `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	KafkaConfig KafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// RedisConfig contains configuration for the Redis event list.
type RedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	ClusterMode  bool          `yaml:"cluster_mode,omitempty" json:"cluster_mode,omitempty"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	Key          string        `yaml:"key,omitempty" json:"key,omitempty"`
	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// KafkaConfig contains Kafka-specific configuration for the event topic.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses.
	Brokers []string `yaml:"brokers" json:"brokers"`

	// Topic is the Kafka topic name for sync events.
	Topic string `yaml:"topic" json:"topic"`

	// GroupID is the consumer group ID used when polling events.
	GroupID string `yaml:"group_id" json:"group_id"`

	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// DispatcherConfig contains settings for the background sync job runner.
type DispatcherConfig struct {
	// JobsPerSecond is the maximum number of sync jobs started per second.
	JobsPerSecond int `yaml:"jobs_per_second" json:"jobs_per_second"`

	// QueueSize is the number of jobs that can wait to be run.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultConfig returns a configuration backed by a local SQLite file,
// the in-memory remote and no event queue.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
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
		Remote: RemoteConfig{
			Type:              "memory",
			RequestsPerSecond: 25,
			Burst:             5,
			RequestTimeout:    30 * time.Second,
		},
		Sync: SyncConfig{
			PageSize:  2000,
			SyncsSoup: "syncs_soup",
		},
		Events: EventsConfig{
			Type:       "none",
			BufferSize: 1000,
			RedisConfig: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 2,
				Key:          "smartsync:events",
				MaxRetries:   3,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			KafkaConfig: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "smartsync-events",
				GroupID:         "smartsync-events",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1, // All replicas
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
		Dispatcher: DispatcherConfig{
			JobsPerSecond: 10,
			QueueSize:     100,
		},
	}
}

// LoadConfig reads a YAML or JSON file on top of DefaultConfig.
// The format is determined by the file extension (.yaml, .yml, or .json).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// GetYAML renders the configuration for the internal client.
func (c *Config) GetYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
