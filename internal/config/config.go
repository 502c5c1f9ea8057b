package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultListenAddr          = ":4949"
	DefaultForumURL            = "https://forum.mfbot.de/"
	DefaultLockTimeout         = 5 * time.Second
	DefaultStatementTimeout    = 30 * time.Second
	DefaultMaxConns            = 8
	DefaultTargetPGVersion     = 14
	DefaultFormat              = "text"
	DefaultLogLevel            = "info"
	DefaultEnvironment         = "production"
	DefaultBackfillBatchSize   = 500
	DefaultBackfillConcurrency = 50
)

// Config holds the application configuration loaded from file, environment,
// and flags, in that order of increasing precedence.
type Config struct {
	DatabaseURL      string
	MigrationsDir    string // empty means the embedded schema bundle
	ListenAddr       string
	ForumURL         string
	LogLevel         string
	Environment      string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	MaxConns         int32
	TargetPGVersion  int
	Format           string
	Backfill         BackfillConfig
}

// BackfillConfig controls re-posting of stored player snapshots to a
// tracker endpoint.
type BackfillConfig struct {
	Endpoint    string
	BatchSize   int
	Concurrency int
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	MigrationsDir    string `yaml:"migrations_dir"`
	ListenAddr       string `yaml:"listen_addr"`
	ForumURL         string `yaml:"forum_url"`
	LogLevel         string `yaml:"log_level"`
	Environment      string `yaml:"environment"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	MaxConns         int32  `yaml:"max_conns"`
	TargetPGVersion  int    `yaml:"target_pg_version"`
	Format           string `yaml:"format"`
	Backfill         struct {
		Endpoint    string `yaml:"endpoint"`
		BatchSize   int    `yaml:"batch_size"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"backfill"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		ListenAddr:       DefaultListenAddr,
		ForumURL:         DefaultForumURL,
		LogLevel:         DefaultLogLevel,
		Environment:      DefaultEnvironment,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		MaxConns:         DefaultMaxConns,
		TargetPGVersion:  DefaultTargetPGVersion,
		Format:           DefaultFormat,
		Backfill: BackfillConfig{
			BatchSize:   DefaultBackfillBatchSize,
			Concurrency: DefaultBackfillConcurrency,
		},
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults
// applied for every field the file leaves unset.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	if raw.ListenAddr != "" {
		cfg.ListenAddr = raw.ListenAddr
	}

	if raw.ForumURL != "" {
		cfg.ForumURL = raw.ForumURL
	}

	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}

	if raw.Environment != "" {
		cfg.Environment = raw.Environment
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	if raw.MaxConns > 0 {
		cfg.MaxConns = raw.MaxConns
	}

	if raw.TargetPGVersion != 0 {
		cfg.TargetPGVersion = raw.TargetPGVersion
	}

	if raw.Format != "" {
		cfg.Format = raw.Format
	}

	if raw.Backfill.Endpoint != "" {
		cfg.Backfill.Endpoint = raw.Backfill.Endpoint
	}

	if raw.Backfill.BatchSize > 0 {
		cfg.Backfill.BatchSize = raw.Backfill.BatchSize
	}

	if raw.Backfill.Concurrency > 0 {
		cfg.Backfill.Concurrency = raw.Backfill.Concurrency
	}

	return cfg, nil
}

// MergeEnv overrides config fields from TRACKER_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("TRACKER_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	if v := os.Getenv("TRACKER_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	if v := os.Getenv("TRACKER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	if v := os.Getenv("TRACKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("TRACKER_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	if v := os.Getenv("TRACKER_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("TRACKER_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}

	if v := os.Getenv("TRACKER_BACKFILL_ENDPOINT"); v != "" {
		cfg.Backfill.Endpoint = v
	}
}
