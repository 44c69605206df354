// Package config provides CLI configuration management for the quarry
// command-line tool. It supports loading configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
)

// Default configuration values.
const (
	DefaultRedisAddr     = "localhost:6379"
	DefaultQueueName     = "resolution"
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = 5 * time.Second
	DefaultPollTimeout   = 5 * time.Second
	DefaultMetricsAddr   = ":9090"
	DefaultOutputFormat  = OutputFormatText
	DefaultConfigDir     = ".quarry"
	DefaultConfigFile    = "config.yaml"
	DefaultMigrationsDir = "migrations"
)

// RedisConfig holds trigger queue connection settings.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`

	// Password is the Redis auth password, if any.
	Password string `yaml:"password,omitempty"`

	// DB is the Redis logical database number.
	DB int `yaml:"db,omitempty"`

	// Queue is the trigger queue name.
	Queue string `yaml:"queue"`
}

// WorkerConfig holds resolution worker settings.
type WorkerConfig struct {
	// MaxAttempts is how many times a trigger runs before dead-lettering.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the pause before a failed trigger is requeued.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// PollTimeout is how long each queue poll blocks.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// TenantID is the default tenant identifier for registry lookups.
	TenantID string `yaml:"tenant_id,omitempty"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// MigrationsDir is the directory containing SQL migration files.
	MigrationsDir string `yaml:"migrations_dir"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Redis holds trigger queue connection settings.
	Redis RedisConfig `yaml:"redis"`

	// Worker holds resolution worker settings.
	Worker WorkerConfig `yaml:"worker"`
}

// DefaultConfig returns a CLIConfig with default values. Database settings
// are read separately from the environment by pkg/db.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat:  DefaultOutputFormat,
		MigrationsDir: DefaultMigrationsDir,
		Redis: RedisConfig{
			Addr:  DefaultRedisAddr,
			Queue: DefaultQueueName,
		},
		Worker: WorkerConfig{
			MaxAttempts: DefaultMaxAttempts,
			RetryDelay:  DefaultRetryDelay,
			PollTimeout: DefaultPollTimeout,
			MetricsAddr: DefaultMetricsAddr,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $QUARRY_CONFIG_DIR if set, otherwise ~/.quarry
func ConfigDir() (string, error) {
	if dir := os.Getenv("QUARRY_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.quarry/config.yaml or $QUARRY_CONFIG_DIR/config.yaml)
// 3. Environment variables (QUARRY_TENANT_ID, QUARRY_REDIS_ADDR, ...)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// We need a temp struct for unmarshaling durations as strings.
	type workerFile struct {
		MaxAttempts int    `yaml:"max_attempts"`
		RetryDelay  string `yaml:"retry_delay"`
		PollTimeout string `yaml:"poll_timeout"`
		MetricsAddr string `yaml:"metrics_addr"`
	}
	type configFile struct {
		TenantID      string       `yaml:"tenant_id"`
		OutputFormat  OutputFormat `yaml:"output_format"`
		MigrationsDir string       `yaml:"migrations_dir"`
		Debug         bool         `yaml:"debug"`
		Redis         *RedisConfig `yaml:"redis"`
		Worker        *workerFile  `yaml:"worker"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.TenantID != "" {
		cfg.TenantID = fileCfg.TenantID
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.MigrationsDir != "" {
		cfg.MigrationsDir = fileCfg.MigrationsDir
	}
	cfg.Debug = fileCfg.Debug

	if fileCfg.Redis != nil {
		if fileCfg.Redis.Addr != "" {
			cfg.Redis.Addr = fileCfg.Redis.Addr
		}
		if fileCfg.Redis.Password != "" {
			cfg.Redis.Password = fileCfg.Redis.Password
		}
		if fileCfg.Redis.DB != 0 {
			cfg.Redis.DB = fileCfg.Redis.DB
		}
		if fileCfg.Redis.Queue != "" {
			cfg.Redis.Queue = fileCfg.Redis.Queue
		}
	}

	if fileCfg.Worker != nil {
		if fileCfg.Worker.MaxAttempts > 0 {
			cfg.Worker.MaxAttempts = fileCfg.Worker.MaxAttempts
		}
		if fileCfg.Worker.RetryDelay != "" {
			d, err := time.ParseDuration(fileCfg.Worker.RetryDelay)
			if err != nil {
				return fmt.Errorf("parsing retry_delay: %w", err)
			}
			cfg.Worker.RetryDelay = d
		}
		if fileCfg.Worker.PollTimeout != "" {
			d, err := time.ParseDuration(fileCfg.Worker.PollTimeout)
			if err != nil {
				return fmt.Errorf("parsing poll_timeout: %w", err)
			}
			cfg.Worker.PollTimeout = d
		}
		if fileCfg.Worker.MetricsAddr != "" {
			cfg.Worker.MetricsAddr = fileCfg.Worker.MetricsAddr
		}
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("QUARRY_TENANT_ID"); v != "" {
		cfg.TenantID = v
	}

	if v := os.Getenv("QUARRY_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("QUARRY_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	if v := os.Getenv("QUARRY_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("QUARRY_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("QUARRY_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("QUARRY_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	if v := os.Getenv("QUARRY_QUEUE"); v != "" {
		cfg.Redis.Queue = v
	}

	if v := os.Getenv("QUARRY_WORKER_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.MaxAttempts = n
		}
	}

	if v := os.Getenv("QUARRY_WORKER_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.RetryDelay = d
		}
	}

	if v := os.Getenv("QUARRY_METRICS_ADDR"); v != "" {
		cfg.Worker.MetricsAddr = v
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text or json)", c.OutputFormat)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	if c.Redis.Queue == "" {
		return fmt.Errorf("redis queue name is required")
	}

	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker max_attempts must be positive")
	}

	if c.Worker.RetryDelay < 0 {
		return fmt.Errorf("worker retry_delay must not be negative")
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	// Convert to YAML-friendly format with durations as strings.
	type workerFile struct {
		MaxAttempts int    `yaml:"max_attempts"`
		RetryDelay  string `yaml:"retry_delay"`
		PollTimeout string `yaml:"poll_timeout"`
		MetricsAddr string `yaml:"metrics_addr"`
	}
	type configFile struct {
		TenantID      string       `yaml:"tenant_id,omitempty"`
		OutputFormat  OutputFormat `yaml:"output_format"`
		MigrationsDir string       `yaml:"migrations_dir,omitempty"`
		Debug         bool         `yaml:"debug,omitempty"`
		Redis         RedisConfig  `yaml:"redis"`
		Worker        workerFile   `yaml:"worker"`
	}

	fileCfg := configFile{
		TenantID:      cfg.TenantID,
		OutputFormat:  cfg.OutputFormat,
		MigrationsDir: cfg.MigrationsDir,
		Debug:         cfg.Debug,
		Redis:         cfg.Redis,
		Worker: workerFile{
			MaxAttempts: cfg.Worker.MaxAttempts,
			RetryDelay:  cfg.Worker.RetryDelay.String(),
			PollTimeout: cfg.Worker.PollTimeout.String(),
			MetricsAddr: cfg.Worker.MetricsAddr,
		},
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
