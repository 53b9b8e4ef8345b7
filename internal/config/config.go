package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the settings shared by all services in this repository.
// Every service loads the full struct; unused sections cost nothing.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	Environment string `env:"FLAG_ENVIRONMENT" envDefault:"default"`

	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Cassandra CassandraConfig
	MinIO     MinIOConfig

	// Definition cache TTLs. Flags change often and need fast updates;
	// experiment definitions are effectively immutable while running.
	FlagCacheTTL       time.Duration `env:"FLAG_CACHE_TTL" envDefault:"1m"`
	ExperimentCacheTTL time.Duration `env:"EXPERIMENT_CACHE_TTL" envDefault:"5m"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	SnapshotInterval   time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"10m"`
}

type PostgresConfig struct {
	Host     string `env:"DB_HOST" envDefault:"postgres"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"targeting"`
	Password string `env:"DB_PASSWORD" envDefault:"targeting"`
	DBName   string `env:"DB_NAME" envDefault:"targeting"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN returns the connection string for pgx.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"redis:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KafkaConfig struct {
	Brokers          []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"kafka:9092"`
	AssignmentsTopic string   `env:"KAFKA_ASSIGNMENTS_TOPIC" envDefault:"targeting.assignments"`
	DefinitionsTopic string   `env:"KAFKA_DEFINITIONS_TOPIC" envDefault:"targeting.definitions"`
	SnapshotsTopic   string   `env:"KAFKA_SNAPSHOTS_TOPIC" envDefault:"targeting.snapshots"`
	ConsumerGroupID  string   `env:"KAFKA_GROUP_ID" envDefault:"assignment-sink"`
}

type CassandraConfig struct {
	Hosts    []string `env:"CASSANDRA_HOSTS" envSeparator:"," envDefault:"cassandra:9042"`
	Keyspace string   `env:"CASSANDRA_KEYSPACE" envDefault:"targeting"`
}

type MinIOConfig struct {
	Endpoint       string `env:"MINIO_ENDPOINT" envDefault:"minio:9000"`
	AccessKey      string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey      string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL         bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	SnapshotBucket string `env:"MINIO_SNAPSHOT_BUCKET" envDefault:"targeting-snapshots"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment config: %w", err)
	}
	return cfg, nil
}
