// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server configuration
	Host string `envconfig:"RICE_EVAL_HOST" yaml:"host"`
	Port int    `envconfig:"RICE_EVAL_PORT" yaml:"port"`

	// Redis holds the ground-truth annotation store.
	Redis RedisConfig `yaml:"redis"`

	// Qdrant is the similarity-search collaborator producing ranked lists.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Evaluation run settings
	Evaluation EvaluationConfig `yaml:"evaluation"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// RedisConfig holds annotation store settings.
type RedisConfig struct {
	URL        string `envconfig:"RICE_EVAL_REDIS_URL" yaml:"url"`
	KeyPrefix  string `envconfig:"RICE_EVAL_REDIS_PREFIX" yaml:"key_prefix"`
	MirrorSets bool   `envconfig:"RICE_EVAL_REDIS_MIRROR_SETS" yaml:"mirror_sets"`
}

// QdrantConfig holds Qdrant connection and retrieval settings.
type QdrantConfig struct {
	Host               string        `envconfig:"QDRANT_HOST" yaml:"host"`
	Port               int           `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey             string        `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS             bool          `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
	Timeout            time.Duration `envconfig:"QDRANT_TIMEOUT" yaml:"timeout"`
	QueryCollection    string        `envconfig:"RICE_EVAL_QUERY_COLLECTION" yaml:"query_collection"`
	DatabaseCollection string        `envconfig:"RICE_EVAL_DATABASE_COLLECTION" yaml:"database_collection"`
	VectorName         string        `envconfig:"RICE_EVAL_VECTOR_NAME" yaml:"vector_name"`
	NameField          string        `envconfig:"RICE_EVAL_NAME_FIELD" yaml:"name_field"`
	TopK               int           `envconfig:"RICE_EVAL_TOP_K" yaml:"top_k"`
}

// EvaluationConfig holds batch evaluation settings.
type EvaluationConfig struct {
	Workers     int    `envconfig:"RICE_EVAL_WORKERS" yaml:"workers"`
	Format      string `envconfig:"RICE_EVAL_FORMAT" yaml:"format"`
	ResultsFile string `envconfig:"RICE_EVAL_RESULTS_FILE" yaml:"results_file"`
	CutoffK     int    `envconfig:"RICE_EVAL_CUTOFF_K" yaml:"cutoff_k"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"RICE_EVAL_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"RICE_EVAL_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"RICE_EVAL_KAFKA_GROUP" yaml:"kafka_group"`
	EventLog     string `envconfig:"RICE_EVAL_EVENT_LOG" yaml:"event_log"` // JSON-lines journal path, empty = disabled
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled     bool   `envconfig:"RICE_EVAL_METRICS_ENABLED" yaml:"enabled"`
	Persistence string `envconfig:"RICE_EVAL_METRICS_PERSISTENCE" yaml:"persistence"` // memory or redis
	RedisURL    string `envconfig:"RICE_EVAL_METRICS_REDIS_URL" yaml:"redis_url"`     // defaults to redis.url
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RICE_EVAL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RICE_EVAL_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds HTTP server protection settings.
type SecurityConfig struct {
	RateLimit int `envconfig:"RICE_EVAL_RATE_LIMIT" yaml:"rate_limit"` // requests/sec per client, 0 = disabled
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	// YAML overrides defaults
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Environment has the highest priority
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Redis = RedisConfig{
		URL:       "redis://localhost:6379/0",
		KeyPrefix: "",
	}

	cfg.Qdrant = QdrantConfig{
		Host:               "localhost",
		Port:               6334,
		Timeout:            30 * time.Second,
		QueryCollection:    "oxford5k_query",
		DatabaseCollection: "oxford5k_raw",
		NameField:          "image_name",
		TopK:               100,
	}

	cfg.Evaluation = EvaluationConfig{
		Workers:     4,
		Format:      "text",
		ResultsFile: "retrieval_results.json",
		CutoffK:     10,
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Metrics = MetricsConfig{
		Enabled:     true,
		Persistence: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit: 0,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.Redis.URL == "" {
		errs = append(errs, "redis url is required")
	}

	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		errs = append(errs, "qdrant port must be between 1 and 65535")
	}

	if c.Qdrant.TopK < 1 {
		errs = append(errs, "top_k must be positive")
	}

	if c.Qdrant.NameField == "" {
		errs = append(errs, "name_field is required")
	}

	if c.Evaluation.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}

	if c.Evaluation.CutoffK < 0 {
		errs = append(errs, "cutoff_k must not be negative")
	}

	if p := c.Metrics.Persistence; p != "" && p != "memory" && p != "redis" {
		errs = append(errs, fmt.Sprintf("invalid metrics persistence: %s (must be memory or redis)", p))
	}

	validFormats := map[string]bool{"text": true, "json": true, "yaml": true}
	if !validFormats[c.Evaluation.Format] {
		errs = append(errs, fmt.Sprintf("invalid report format: %s (must be text, json, or yaml)", c.Evaluation.Format))
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true, "none": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory, kafka, or none)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "kafka_brokers is required when bus type is kafka")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Security.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsRedisURL returns the Redis URL used for metrics history.
func (c *Config) MetricsRedisURL() string {
	if c.Metrics.RedisURL != "" {
		return c.Metrics.RedisURL
	}
	return c.Redis.URL
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
