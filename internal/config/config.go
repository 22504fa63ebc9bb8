package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryConfig `yaml:"registry"`
	Export   ExportConfig   `yaml:"export"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Runner   RunnerConfig   `yaml:"runner"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RegistryConfig points at the model registry file.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// ExportConfig holds artifact output settings.
type ExportConfig struct {
	ArtifactRoot string `yaml:"artifact_root"`
}

// DatasetConfig selects where dataset sheets come from. Source is
// "local" or "s3".
type DatasetConfig struct {
	Source     string `yaml:"source"`
	Root       string `yaml:"root"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	AWSProfile string `yaml:"aws_profile"`
}

// RunnerConfig selects the task runner mode: "inline" or "pool".
type RunnerConfig struct {
	Mode    string `yaml:"mode"`
	Workers int    `yaml:"workers"`
}

// StorageConfig holds the optional Postgres and Redis backends. Empty
// values fall back to in-memory stores.
type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so local
// secrets can live in .env and real env vars take over in deployment.
// A missing config file is not an error; env vars and defaults apply.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REGISTRY_FILE"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("ARTIFACT_ROOT"); v != "" {
		cfg.Export.ArtifactRoot = v
	}
	if v := os.Getenv("DATA_ROOT"); v != "" {
		cfg.Dataset.Root = v
	}
	if v := os.Getenv("DATASET_SOURCE"); v != "" {
		cfg.Dataset.Source = v
	}
	if v := os.Getenv("DATASET_S3_BUCKET"); v != "" {
		cfg.Dataset.S3Bucket = v
	}
	if v := os.Getenv("DATASET_S3_REGION"); v != "" {
		cfg.Dataset.S3Region = v
	}
	if v := os.Getenv("AWS_PROFILE_OVERRIDE"); v != "" {
		cfg.Dataset.AWSProfile = v
	}
	if v := os.Getenv("RUNNER"); v != "" {
		cfg.Runner.Mode = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Runner.Workers = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Registry.Path == "" {
		c.Registry.Path = "registry.yaml"
	}
	if c.Export.ArtifactRoot == "" {
		c.Export.ArtifactRoot = "artifacts"
	}
	if c.Dataset.Source == "" {
		c.Dataset.Source = "local"
	}
	if c.Dataset.Root == "" {
		c.Dataset.Root = "data"
	}
	if c.Dataset.S3Region == "" {
		c.Dataset.S3Region = "us-east-1"
	}
	if c.Runner.Mode == "" {
		c.Runner.Mode = "inline"
	}
	// "thread" is the legacy name for the worker-pool mode.
	if c.Runner.Mode == "thread" {
		c.Runner.Mode = "pool"
	}
	if c.Runner.Workers == 0 {
		c.Runner.Workers = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
