package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Adapter  AdapterConfig  `mapstructure:"adapter"`
	Builds   BuildsConfig   `mapstructure:"builds"`
	Identity IdentityConfig `mapstructure:"identity"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`     // Secret for JWT signing
	AdminUsername string `mapstructure:"admin_username"` // Default admin seeded at boot
	AdminPassword string `mapstructure:"admin_password"` // Empty disables seeding
}

// QueueConfig holds transition event queue configuration
type QueueConfig struct {
	Type       string `mapstructure:"type"`        // "memory" or "valkey"
	ValkeyAddr string `mapstructure:"valkey_addr"` // Valkey address (if type=valkey), e.g. "localhost:6379"
}

// AdapterConfig holds deployment substrate adapter configuration
type AdapterConfig struct {
	Driver         string        `mapstructure:"driver"`          // "fake" or "http"
	BaseURL        string        `mapstructure:"base_url"`        // Substrate API base URL (http driver)
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"` // How long to wait for async confirmation
	PollInterval   time.Duration `mapstructure:"poll_interval"`   // Status poll interval (http driver)
}

// BuildsConfig holds CI build feed ingestion configuration
type BuildsConfig struct {
	FeedURL      string        `mapstructure:"feed_url"`      // CI feed endpoint; empty disables polling
	PollInterval time.Duration `mapstructure:"poll_interval"` // How often to poll the feed
}

// IdentityConfig holds the owner lookup collaborator configuration
type IdentityConfig struct {
	BaseURL string `mapstructure:"base_url"` // External identity service; empty uses the local users table
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for local development
	v.SetDefault("server.port", 8470)
	v.SetDefault("server.mode", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./orchestrator.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.valkey_addr", "localhost:6379")
	v.SetDefault("adapter.driver", "fake")
	v.SetDefault("adapter.base_url", "")
	v.SetDefault("adapter.confirm_timeout", 30*time.Second)
	v.SetDefault("adapter.poll_interval", 2*time.Second)
	v.SetDefault("builds.feed_url", "")
	v.SetDefault("builds.poll_interval", time.Minute)
	v.SetDefault("identity.base_url", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/cloudinator/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("CLOUDINATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
