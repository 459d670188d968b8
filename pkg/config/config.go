// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Builder, Postgres, Kafka, Redis, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Builder  BuilderConfig  `yaml:"builder"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// BuilderConfig controls the co-occurrence window, the weight table, the
// event source and where the finished matrix goes.
type BuilderConfig struct {
	WindowSize int       `yaml:"windowSize"`
	Context    string    `yaml:"context"`
	Weights    []float64 `yaml:"weights"`
	Weighting  string    `yaml:"weighting"`
	RollUp     bool      `yaml:"rollUp"`
	Shards     int       `yaml:"shards"`
	Source     string    `yaml:"source"`
	PageSize   int       `yaml:"pageSize"`
	OutputDir  string    `yaml:"outputDir"`
	Persist    bool      `yaml:"persist"`
	Notify     bool      `yaml:"notify"`
	BuildName  string    `yaml:"buildName"`
}

// Validate rejects values the builder can never accept. Window/context
// compatibility with the weight vector is checked again by the builder.
func (b BuilderConfig) Validate() error {
	if b.WindowSize < 0 {
		return fmt.Errorf("windowSize must be >= 0, got %d", b.WindowSize)
	}
	switch b.Context {
	case "symmetric", "left":
	default:
		return fmt.Errorf("context must be one of symmetric|left, got %q", b.Context)
	}
	if len(b.Weights) == 0 {
		switch b.Weighting {
		case "uniform", "harmonic":
		default:
			return fmt.Errorf("weighting must be one of uniform|harmonic when no weights are given, got %q", b.Weighting)
		}
	}
	if b.Shards < 1 {
		return fmt.Errorf("shards must be >= 1, got %d", b.Shards)
	}
	switch b.Source {
	case "postgres", "kafka":
	default:
		return fmt.Errorf("source must be one of postgres|kafka, got %q", b.Source)
	}
	if b.PageSize <= 0 {
		return fmt.Errorf("pageSize must be > 0, got %d", b.PageSize)
	}
	return nil
}

// PostgresConfig holds PostgreSQL connection parameters and the schema that
// holds the input and output tables.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ConceptEvents  string `yaml:"conceptEvents"`
	BuildCompleted string `yaml:"buildCompleted"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the ancestor cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Builder: BuilderConfig{
			WindowSize: 30,
			Context:    "symmetric",
			Weighting:  "harmonic",
			RollUp:     false,
			Shards:     1,
			Source:     "postgres",
			PageSize:   100000,
			OutputDir:  "data/matrices",
			BuildName:  "cooccurrence",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "cdm",
			User:            "cooccurrence",
			Password:        "localdev",
			SSLMode:         "disable",
			Schema:          "public",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				ConceptEvents:  "concept-events",
				BuildCompleted: "cooccurrence.build-completed",
			},
		},
		Redis: RedisConfig{
			Addr:     "",
			DB:       0,
			PoolSize: 4,
			CacheTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CC_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Builder.WindowSize = n
		}
	}
	if v := os.Getenv("CC_CONTEXT"); v != "" {
		cfg.Builder.Context = v
	}
	if v := os.Getenv("CC_WEIGHTING"); v != "" {
		cfg.Builder.Weighting = v
	}
	if v := os.Getenv("CC_ROLL_UP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Builder.RollUp = b
		}
	}
	if v := os.Getenv("CC_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Builder.Shards = n
		}
	}
	if v := os.Getenv("CC_SOURCE"); v != "" {
		cfg.Builder.Source = v
	}
	if v := os.Getenv("CC_NOTIFY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Builder.Notify = b
		}
	}
	if v := os.Getenv("CC_OUTPUT_DIR"); v != "" {
		cfg.Builder.OutputDir = v
	}
	if v := os.Getenv("CC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CC_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("CC_POSTGRES_SCHEMA"); v != "" {
		cfg.Postgres.Schema = v
	}
	if v := os.Getenv("CC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CC_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
