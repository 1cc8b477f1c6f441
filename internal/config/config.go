package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Chatwoot    ChatwootConfig  `mapstructure:"chatwoot"`
	Dashboard   DashboardConfig `mapstructure:"dashboard"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Archive     ArchiveConfig   `mapstructure:"archive"`
	Security    SecurityConfig  `mapstructure:"security"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	IdleTimeout    int `mapstructure:"idle_timeout"`
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// ChatwootConfig contains the record-source API settings
type ChatwootConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIToken       string `mapstructure:"api_token"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DashboardConfig contains aggregation and refresh settings
type DashboardConfig struct {
	RefreshIntervalSeconds int    `mapstructure:"refresh_interval_seconds"`
	Timezone               string `mapstructure:"timezone"`
	DefaultWeek            int    `mapstructure:"default_week"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	Database     int    `mapstructure:"database"`
	SnapshotTTL  int    `mapstructure:"snapshot_ttl"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig contains Postgres connection settings for the archive
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN builds a Postgres connection string from the settings.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Name, d.SSLMode)
}

// ArchiveConfig controls snapshot history persistence
type ArchiveConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	HistoryLimit int  `mapstructure:"history_limit"`
}

// SecurityConfig contains API security configuration
type SecurityConfig struct {
	APIAuth APIAuthConfig `mapstructure:"api_auth"`
}

// APIAuthConfig contains API authentication settings
type APIAuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("FUNNELBOARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Chatwoot.BaseURL == "" {
		return fmt.Errorf("chatwoot base URL not configured")
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("HTTP port not configured")
	}
	if c.Dashboard.DefaultWeek < 1 || c.Dashboard.DefaultWeek > 5 {
		return fmt.Errorf("default week must be between 1 and 5, got %d", c.Dashboard.DefaultWeek)
	}
	if c.Security.APIAuth.Enabled && c.Security.APIAuth.JWTSecret == "" {
		return fmt.Errorf("API auth enabled but no JWT secret configured")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.max_header_bytes", 1048576)

	// Record source defaults
	v.SetDefault("chatwoot.page_size", 25)
	v.SetDefault("chatwoot.timeout_seconds", 30)

	// Dashboard defaults
	v.SetDefault("dashboard.refresh_interval_seconds", 30)
	v.SetDefault("dashboard.timezone", "")
	v.SetDefault("dashboard.default_week", 1)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.snapshot_ttl", 300)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.history_limit", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
}

// overrideWithEnvVars overrides secrets with plain environment variables
func overrideWithEnvVars(v *viper.Viper) {
	if token := os.Getenv("CHATWOOT_API_TOKEN"); token != "" {
		v.Set("chatwoot.api_token", token)
	}
	if baseURL := os.Getenv("CHATWOOT_BASE_URL"); baseURL != "" {
		v.Set("chatwoot.base_url", baseURL)
	}
	if password := os.Getenv("DATABASE_PASSWORD"); password != "" {
		v.Set("database.password", password)
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("redis.password", password)
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		v.Set("security.api_auth.jwt_secret", jwtSecret)
	}
}
