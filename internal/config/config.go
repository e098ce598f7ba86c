// Package config loads server configuration from the environment using
// manual os.Getenv-with-defaults reads rather than a struct-tag-driven
// loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Port string

	StoreDriver string // "memory" or "sqlite"
	SqliteDSN   string

	MySQLHost     string
	MySQLPort     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	BootstrapDir string // directory holding admins.json/moderators.json/genesis.json

	DiscoveryEnabled bool

	RateLimitPerMinute int
	MaxBodySizeBytes   int64
	ShutdownTimeout    time.Duration
}

// Default values.
const (
	DefaultPort               = "8000"
	DefaultStoreDriver        = "memory"
	DefaultSqliteDSN          = "./data/trust.db"
	DefaultBootstrapDir       = "."
	DefaultRateLimitPerMinute = 100
	DefaultMaxBodySizeBytes   = 1 << 20 // 1MB
	DefaultShutdownTimeout    = 30 * time.Second
)

// yamlOverlay mirrors Config but with optional fields, so a CONFIG_FILE
// only needs to set what it wants to override; everything else falls
// through to Load's defaults.
type yamlOverlay struct {
	Port                *string `yaml:"port"`
	StoreDriver         *string `yaml:"store_driver"`
	SqliteDSN           *string `yaml:"sqlite_dsn"`
	BootstrapDir        *string `yaml:"bootstrap_dir"`
	DiscoveryEnabled    *bool   `yaml:"discovery_enabled"`
	RateLimitPerMinute  *int    `yaml:"rate_limit_per_minute"`
	MaxBodySizeBytes    *int64  `yaml:"max_body_size_bytes"`
	ShutdownTimeout     *string `yaml:"shutdown_timeout"`
}

// applyFile overlays a YAML config file's present fields onto cfg.
func (cfg *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if overlay.Port != nil {
		cfg.Port = *overlay.Port
	}
	if overlay.StoreDriver != nil {
		cfg.StoreDriver = *overlay.StoreDriver
	}
	if overlay.SqliteDSN != nil {
		cfg.SqliteDSN = *overlay.SqliteDSN
	}
	if overlay.BootstrapDir != nil {
		cfg.BootstrapDir = *overlay.BootstrapDir
	}
	if overlay.DiscoveryEnabled != nil {
		cfg.DiscoveryEnabled = *overlay.DiscoveryEnabled
	}
	if overlay.RateLimitPerMinute != nil {
		cfg.RateLimitPerMinute = *overlay.RateLimitPerMinute
	}
	if overlay.MaxBodySizeBytes != nil {
		cfg.MaxBodySizeBytes = *overlay.MaxBodySizeBytes
	}
	if overlay.ShutdownTimeout != nil {
		d, err := time.ParseDuration(*overlay.ShutdownTimeout)
		if err != nil {
			return err
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

// Load reads configuration from environment variables with defaults,
// overlaying a CONFIG_FILE (YAML) between the defaults and the env vars
// if CONFIG_FILE names a readable file — env vars always win over the
// file, the file always wins over defaults. MYSQL_* vars are accepted
// for forward compatibility with §6.2 but, absent a pack-grounded MySQL
// driver, the only durable backend wired up is StoreDriver="sqlite" (see
// SPEC_FULL.md §6.2); Load itself never fails, it only loosens bad input
// back to the existing value.
func Load() *Config {
	cfg := &Config{
		Port:               DefaultPort,
		StoreDriver:        DefaultStoreDriver,
		SqliteDSN:          DefaultSqliteDSN,
		BootstrapDir:       DefaultBootstrapDir,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		MaxBodySizeBytes:   DefaultMaxBodySizeBytes,
		ShutdownTimeout:    DefaultShutdownTimeout,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		_ = cfg.applyFile(path)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.StoreDriver = driver
	}

	if dsn := os.Getenv("SQLITE_DSN"); dsn != "" {
		cfg.SqliteDSN = dsn
	}

	cfg.MySQLHost = os.Getenv("MYSQL_HOST")
	cfg.MySQLPort = os.Getenv("MYSQL_PORT")
	cfg.MySQLUser = os.Getenv("MYSQL_USER")
	cfg.MySQLPassword = os.Getenv("MYSQL_PASSWORD")
	cfg.MySQLDatabase = os.Getenv("MYSQL_DATABASE")

	if dir := os.Getenv("BOOTSTRAP_DIR"); dir != "" {
		cfg.BootstrapDir = dir
	}

	if enabled := os.Getenv("DISCOVERY_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.DiscoveryEnabled = parsed
		}
	}

	if rateLimitEnv := os.Getenv("RATE_LIMIT_PER_MINUTE"); rateLimitEnv != "" {
		if rateLimit, err := strconv.Atoi(rateLimitEnv); err == nil && rateLimit > 0 {
			cfg.RateLimitPerMinute = rateLimit
		}
	}

	if maxBodyEnv := os.Getenv("MAX_BODY_SIZE_BYTES"); maxBodyEnv != "" {
		if maxBody, err := strconv.ParseInt(maxBodyEnv, 10, 64); err == nil && maxBody > 0 {
			cfg.MaxBodySizeBytes = maxBody
		}
	}

	if shutdownTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); shutdownTimeout != "" {
		if duration, err := time.ParseDuration(shutdownTimeout); err == nil {
			cfg.ShutdownTimeout = duration
		}
	}

	return cfg
}

// Addr returns the listen address for net/http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}
