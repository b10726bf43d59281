package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SteelMorgan/journal-ingest/internal/retry"
)

// Store backends
const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Sink backends
const (
	SinkClickHouse = "clickhouse"
	SinkNone       = "none"
)

// Config holds all configuration for the application
type Config struct {
	// Journal directory
	JournalDir     string        `yaml:"journal_dir"`
	JournalPattern string        `yaml:"journal_pattern"`
	PollInterval   time.Duration `yaml:"poll_interval"` // Tail poll interval
	SyncInterval   time.Duration `yaml:"sync_interval"` // Pause between backfill passes

	// Ledger and envelope store
	StoreBackend     string `yaml:"store_backend"`
	BoltPath         string `yaml:"bolt_path"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`

	// Typed event sink
	SinkBackend        string `yaml:"sink_backend"`
	ClickHouseHost     string `yaml:"clickhouse_host"`
	ClickHousePort     int    `yaml:"clickhouse_port"`
	ClickHouseDB       string `yaml:"clickhouse_db"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`
	ClickHouseDedup    bool   `yaml:"clickhouse_dedup"` // Check row existence before insert
	ProgressMirror     bool   `yaml:"progress_mirror"`  // Mirror ledger updates to ClickHouse

	// Minimum time between mirror writes for one file
	MirrorInterval time.Duration `yaml:"mirror_interval"`

	// Retries against network stores
	RetryMaxAttempts    int     `yaml:"retry_max_attempts"`
	RetryInitialDelayMs int     `yaml:"retry_initial_delay_ms"`
	RetryMaxDelayMs     int     `yaml:"retry_max_delay_ms"`
	RetryMultiplier     float64 `yaml:"retry_multiplier"`

	// Event types re-dispatched once at startup
	ReprocessEvents []string `yaml:"reprocess_events"`

	// Observability
	LogLevel        string `yaml:"log_level"`
	LogFile         string `yaml:"log_file"`
	TracingEnabled  bool   `yaml:"tracing_enabled"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
	TracingProtocol string `yaml:"tracing_protocol"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	defaults := retry.DefaultConfig()

	return &Config{
		JournalPattern: "Journal.*.log",
		PollInterval:   500 * time.Millisecond,
		SyncInterval:   30 * time.Second,

		StoreBackend: StoreBolt,
		BoltPath:     "journal-ingest.db",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "journal",
		PostgresUser: "postgres",

		SinkBackend:    SinkNone,
		ClickHouseHost: "localhost",
		ClickHousePort: 9000,
		ClickHouseDB:   "journal",
		ClickHouseUser: "default",
		MirrorInterval: 5 * time.Second,

		RetryMaxAttempts:    defaults.MaxAttempts,
		RetryInitialDelayMs: int(defaults.InitialDelay / time.Millisecond),
		RetryMaxDelayMs:     int(defaults.MaxDelay / time.Millisecond),
		RetryMultiplier:     defaults.Multiplier,

		LogLevel:        "info",
		TracingProtocol: "grpc",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment variables, in that order of precedence
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides fields with the environment variables that are set
func (c *Config) applyEnv() {
	c.JournalDir = getEnv("JOURNAL_DIR", c.JournalDir)
	c.JournalPattern = getEnv("JOURNAL_PATTERN", c.JournalPattern)
	c.PollInterval = getEnvDuration("POLL_INTERVAL", c.PollInterval)
	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.BoltPath = getEnv("BOLT_PATH", c.BoltPath)
	c.PostgresHost = getEnv("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnvInt("POSTGRES_PORT", c.PostgresPort)
	c.PostgresDB = getEnv("POSTGRES_DB", c.PostgresDB)
	c.PostgresUser = getEnv("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", c.PostgresPassword)

	c.SinkBackend = strings.ToLower(getEnv("SINK_BACKEND", c.SinkBackend))
	c.ClickHouseHost = getEnv("CLICKHOUSE_HOST", c.ClickHouseHost)
	c.ClickHousePort = getEnvInt("CLICKHOUSE_PORT", c.ClickHousePort)
	c.ClickHouseDB = getEnv("CLICKHOUSE_DB", c.ClickHouseDB)
	c.ClickHouseUser = getEnv("CLICKHOUSE_USER", c.ClickHouseUser)
	c.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", c.ClickHousePassword)
	c.ClickHouseDedup = getEnvBool("CLICKHOUSE_DEDUP", c.ClickHouseDedup)
	c.ProgressMirror = getEnvBool("PROGRESS_MIRROR", c.ProgressMirror)
	c.MirrorInterval = getEnvDuration("MIRROR_INTERVAL", c.MirrorInterval)

	c.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryInitialDelayMs = getEnvInt("RETRY_INITIAL_DELAY_MS", c.RetryInitialDelayMs)
	c.RetryMaxDelayMs = getEnvInt("RETRY_MAX_DELAY_MS", c.RetryMaxDelayMs)
	c.RetryMultiplier = getEnvFloat("RETRY_MULTIPLIER", c.RetryMultiplier)

	if value := os.Getenv("REPROCESS_EVENTS"); value != "" {
		c.ReprocessEvents = parseList(value, ",")
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.TracingEnabled = getEnvBool("TRACING_ENABLED", c.TracingEnabled)
	c.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingProtocol = getEnv("TRACING_PROTOCOL", c.TracingProtocol)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.JournalDir == "" {
		return fmt.Errorf("JOURNAL_DIR is required")
	}
	if c.JournalPattern == "" {
		return fmt.Errorf("JOURNAL_PATTERN must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}

	switch c.StoreBackend {
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt store")
		}
	case StorePostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required for the postgres store")
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be between 1 and 65535")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required for the postgres store")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q (use %q or %q)", c.StoreBackend, StoreBolt, StorePostgres)
	}

	switch c.SinkBackend {
	case SinkClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
	case SinkNone:
		if c.ProgressMirror {
			return fmt.Errorf("PROGRESS_MIRROR requires SINK_BACKEND=%s", SinkClickHouse)
		}
	default:
		return fmt.Errorf("unsupported SINK_BACKEND %q (use %q or %q)", c.SinkBackend, SinkClickHouse, SinkNone)
	}

	if c.MirrorInterval < 0 {
		return fmt.Errorf("MIRROR_INTERVAL must not be negative")
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}

	if c.TracingEnabled && c.TracingProtocol != "grpc" && c.TracingProtocol != "http" {
		return fmt.Errorf("TRACING_PROTOCOL must be grpc or http")
	}

	return nil
}

// Retry returns the retry policy for network store operations
func (c *Config) Retry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	cfg.InitialDelay = time.Duration(c.RetryInitialDelayMs) * time.Millisecond
	cfg.MaxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
	cfg.Multiplier = c.RetryMultiplier
	return cfg.Normalize()
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("500ms") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// parseList splits a separated list, dropping blanks
func parseList(s, sep string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
