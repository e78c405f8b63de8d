package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manual-data backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
)

type Config struct {
	// HTTP Server
	Port               string        `yaml:"port"`
	BackendURL         string        `yaml:"backend_url"`
	ProxyTimeout       time.Duration `yaml:"proxy_timeout"`
	ConfigFetchTimeout time.Duration `yaml:"config_fetch_timeout"`
	ConfigCacheTTL     time.Duration `yaml:"config_cache_ttl"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	StaticDBPath       string        `yaml:"static_db_path"`
	LogLevel           string        `yaml:"log_level"`

	// Feature flags
	FeatureManualData        bool `yaml:"feature_manual_data"`
	FeatureStaticDB          bool `yaml:"feature_static_db"`
	FeatureManualLiabilities bool `yaml:"feature_manual_liabilities"`
	FeatureManualAssets      bool `yaml:"feature_manual_assets"`

	// Manual data
	ManualDataReadOnly        bool   `yaml:"manual_data_readonly"`
	ManualDataDryRun          bool   `yaml:"manual_data_dry_run"`
	ManualDataMigrationSecret string `yaml:"manual_data_migration_secret"`
	ManualDataBackend         string `yaml:"manual_data_backend"`
	ManualDataFile            string `yaml:"manual_data_file"`

	// Database
	DatabaseURL  string `yaml:"database_url"`
	PGSSL        bool   `yaml:"pgssl"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
}

func defaults() *Config {
	return &Config{
		Port:               "3000",
		BackendURL:         "https://teller10-15a.onrender.com",
		ProxyTimeout:       30 * time.Second,
		ConfigFetchTimeout: 5 * time.Second,
		ConfigCacheTTL:     30 * time.Second,
		RateLimitPerMinute: 60,
		StaticDBPath:       "./data/db.json",
		LogLevel:           "info",
		ManualDataFile:     "./data/manual-data.json",
		PGSSL:              true,
		SQLiteDBPath:       "./data/finboard.db",
		AMQPExchange:       "finboard.manual",
	}
}

// Load reads the optional YAML file named by CONFIG_PATH, then applies
// environment overrides on top of it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.ProxyTimeout = getEnvDuration("PROXY_TIMEOUT", cfg.ProxyTimeout)
	cfg.ConfigFetchTimeout = getEnvDuration("CONFIG_FETCH_TIMEOUT", cfg.ConfigFetchTimeout)
	cfg.ConfigCacheTTL = getEnvDuration("CONFIG_CACHE_TTL", cfg.ConfigCacheTTL)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.StaticDBPath = getEnv("STATIC_DB_PATH", cfg.StaticDBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.FeatureManualData = getEnvBool("FEATURE_MANUAL_DATA", cfg.FeatureManualData)
	cfg.FeatureStaticDB = getEnvBool("FEATURE_STATIC_DB", cfg.FeatureStaticDB)
	cfg.FeatureManualLiabilities = getEnvBool("FEATURE_MANUAL_LIABILITIES", cfg.FeatureManualLiabilities)
	cfg.FeatureManualAssets = getEnvBool("FEATURE_MANUAL_ASSETS", cfg.FeatureManualAssets)

	cfg.ManualDataReadOnly = getEnvBool("MANUAL_DATA_READONLY", cfg.ManualDataReadOnly)
	cfg.ManualDataDryRun = getEnvBool("MANUAL_DATA_DRY_RUN", cfg.ManualDataDryRun)
	cfg.ManualDataMigrationSecret = getEnv("MANUAL_DATA_MIGRATION_SECRET", cfg.ManualDataMigrationSecret)
	cfg.ManualDataBackend = getEnv("MANUAL_DATA_BACKEND", cfg.ManualDataBackend)
	cfg.ManualDataFile = getEnv("MANUAL_DATA_FILE", cfg.ManualDataFile)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.PGSSL = getEnvBool("PGSSL", cfg.PGSSL)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)

	if cfg.ManualDataBackend == "" {
		cfg.ManualDataBackend = BackendFile
		if cfg.DatabaseURL != "" {
			cfg.ManualDataBackend = BackendPostgres
		}
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid backend URL '%s': must be an absolute http(s) URL", c.BackendURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid backend URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	validBackends := []string{BackendPostgres, BackendSQLite, BackendFile}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.ManualDataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid manual data backend '%s': must be one of %v", c.ManualDataBackend, validBackends))
	}

	switch c.ManualDataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendFile:
		if c.ManualDataFile == "" {
			errors = append(errors, "manual data file cannot be empty when using file backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ProxyTimeout < time.Second || c.ProxyTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid proxy timeout %v: must be between 1s and 5m", c.ProxyTimeout))
	}
	if c.ConfigFetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid config fetch timeout %v: must be positive", c.ConfigFetchTimeout))
	}
	if c.ConfigCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid config cache TTL %v: must not be negative", c.ConfigCacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool treats only "true" (any case) as true, and an explicit
// "false" as false. Unset keeps the default.
func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
