package registry

import (
	"time"
)

// InternalConfig represents the internal configuration structure.
// This is a copy of the public Config type to avoid import cycles.
type InternalConfig struct {
	Database InternalDatabaseConfig `yaml:"database" json:"database"`
	Remote   InternalRemoteConfig   `yaml:"remote" json:"remote"`
	Sync     InternalSyncConfig     `yaml:"sync" json:"sync"`
	Events   InternalEventsConfig   `yaml:"events" json:"events"`
}

// InternalDatabaseConfig contains configuration for the local soup database.
type InternalDatabaseConfig struct {
	// Type is "sqlite" or "mysql".
	Type string `yaml:"type" json:"type"`

	// Driver selects the SQLite driver: "modernc" (default) or "ncruces".
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`

	// Path is the SQLite file, or ":memory:".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Database          string        `yaml:"database,omitempty" json:"database,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// InternalRemoteConfig contains configuration for the remote data service.
// Supports multiple backends through validators registered per type.
type InternalRemoteConfig struct {
	Type           string                 `yaml:"type" json:"type"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`

	// RequestsPerSecond caps calls to the remote. Zero disables limiting.
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`
	Burst             int           `yaml:"burst,omitempty" json:"burst,omitempty"`
	RequestTimeout    time.Duration `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// InternalSyncConfig contains sync engine settings.
type InternalSyncConfig struct {
	// PageSize is the page size used when scanning local soups.
	PageSize int `yaml:"page_size" json:"page_size"`

	// SyncsSoup is the reserved soup holding persisted sync states.
	SyncsSoup string `yaml:"syncs_soup" json:"syncs_soup"`
}

// InternalEventsConfig contains the sync event queue configuration.
type InternalEventsConfig struct {
	// Type is "none", "memory", "redis" or "kafka".
	Type        string              `yaml:"type" json:"type"`
	BufferSize  int                 `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	RedisConfig InternalRedisConfig `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	KafkaConfig InternalKafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
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

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
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
