package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Library  LibraryConfig  `yaml:"library"`
	AI       AIConfig       `yaml:"ai"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type LibraryConfig struct {
	ThumbnailWorkers int `yaml:"thumbnail_workers"`
	QueueSize        int `yaml:"queue_size"`
	SplitConcurrency int `yaml:"split_concurrency"`
}

// AIConfig selects the one provider implementation used at runtime.
// Provider is "openai", "local" or empty (no provider until one is saved).
type AIConfig struct {
	Provider       string        `yaml:"provider"`
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Timeout        time.Duration `yaml:"timeout"`
	Local          LocalAIConfig `yaml:"local"`
}

type LocalAIConfig struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	RuntimePath   string `yaml:"runtime_path"`
}

type LoggingConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// Load reads config from a YAML file and applies environment variable overrides.
// A missing file is not an error: defaults and the environment are enough to boot.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "", "openai", "local":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.Provider == "local" && (c.AI.Local.ModelPath == "" || c.AI.Local.TokenizerPath == "") {
		return fmt.Errorf("local ai provider needs model_path and tokenizer_path")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max_conns must be positive")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 5
	}
	if cfg.Library.ThumbnailWorkers == 0 {
		cfg.Library.ThumbnailWorkers = 3
	}
	if cfg.Library.QueueSize == 0 {
		cfg.Library.QueueSize = 100
	}
	if cfg.Library.SplitConcurrency == 0 {
		cfg.Library.SplitConcurrency = 4
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.AI.Provider == "local" && cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "all-MiniLM-L6-v2"
	}
	if cfg.Logging.Mode == "" {
		cfg.Logging.Mode = "dev"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ASSETLIB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("ASSETLIB_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("ASSETLIB_DB_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxConns = n
		}
	}
	if v := os.Getenv("ASSETLIB_THUMBNAIL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Library.ThumbnailWorkers = n
		}
	}
	if v := os.Getenv("ASSETLIB_AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("ASSETLIB_AI_ENDPOINT"); v != "" {
		cfg.AI.Endpoint = v
	}
	if v := os.Getenv("ASSETLIB_AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("ASSETLIB_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("ASSETLIB_AI_EMBEDDING_MODEL"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := os.Getenv("ASSETLIB_LOG_MODE"); v != "" {
		cfg.Logging.Mode = v
	}
	if v := os.Getenv("ASSETLIB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
