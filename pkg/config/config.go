// Package config provides configuration handling for the loom server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Blob configuration
	Blob BlobConfig `json:"blob"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Billing configuration
	Billing BillingConfig `json:"billing"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway"`

	// LLM configuration
	LLM LLMConfig `json:"llm"`

	// Cache configuration
	Cache CacheConfig `json:"cache"`

	// Janitor configuration
	Janitor JanitorConfig `json:"janitor"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`

	// TLS configuration
	TLS TLSConfig `json:"tls"`
}

// TLSConfig contains TLS settings
type TLSConfig struct {
	// Enabled indicates whether TLS is enabled
	Enabled bool `json:"enabled"`

	// CertFile is the path to the certificate file
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the key file
	KeyFile string `json:"key_file"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type"` // "memory", "postgres"

	// PostgreSQL configuration
	Postgres PostgresConfig `json:"postgres"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	// Host is the database host
	Host string `json:"host"`

	// Port is the database port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// User is the database user
	User string `json:"user"`

	// Password is the database password
	Password string `json:"password"`

	// SSLMode is the SSL mode
	SSLMode string `json:"ssl_mode"`
}

// BlobConfig contains media storage settings
type BlobConfig struct {
	// Type of blob store to use
	Type string `json:"type"` // "memory", "s3"

	// Bucket holding the media objects
	Bucket string `json:"bucket"`

	// Region is the AWS region
	Region string `json:"region"`

	// Endpoint overrides the S3 endpoint (for S3-compatible stores)
	Endpoint string `json:"endpoint"`

	// AccessKey for the object store
	AccessKey string `json:"access_key"`

	// SecretKey for the object store
	SecretKey string `json:"secret_key"`

	// PublicBaseURL is the origin serving public objects
	PublicBaseURL string `json:"public_base_url"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret for signing JWT tokens
	JWTSecret string `json:"jwt_secret"`

	// TokenExpiration is the token expiration time in hours
	TokenExpiration int `json:"token_expiration"`

	// InitialCredits granted to new accounts
	InitialCredits int `json:"initial_credits"`
}

// BillingConfig contains payment provider settings
type BillingConfig struct {
	// BaseURL of the payment provider API
	BaseURL string `json:"base_url"`

	// SecretKey authenticating against the provider
	SecretKey string `json:"secret_key"`

	// AppBaseURL is the public URL of this application, used to build
	// checkout redirect URLs
	AppBaseURL string `json:"app_base_url"`
}

// GatewayConfig contains model gateway settings
type GatewayConfig struct {
	// BaseURL of the generation gateway
	BaseURL string `json:"base_url"`

	// APIKey authenticating against the gateway
	APIKey string `json:"api_key"`

	// PollIntervalMs between status checks
	PollIntervalMs int `json:"poll_interval_ms"`

	// MaxPollAttempts before giving up
	MaxPollAttempts int `json:"max_poll_attempts"`
}

// LLMConfig contains text generation settings
type LLMConfig struct {
	// BaseURL of the chat completions API
	BaseURL string `json:"base_url"`

	// APIKey authenticating against the API
	APIKey string `json:"api_key"`

	// DefaultModel used when requests do not name one
	DefaultModel string `json:"default_model"`
}

// CacheConfig contains catalog cache settings
type CacheConfig struct {
	// Type of cache to use
	Type string `json:"type"` // "memory", "redis"

	// TTLSeconds for cached entries
	TTLSeconds int `json:"ttl_seconds"`

	// Redis configuration
	Redis RedisConfig `json:"redis"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	// Addr of the Redis server
	Addr string `json:"addr"`

	// Password for the Redis server
	Password string `json:"password"`

	// DB index
	DB int `json:"db"`
}

// JanitorConfig contains stale-generation cleanup settings
type JanitorConfig struct {
	// Enabled turns the janitor on
	Enabled bool `json:"enabled"`

	// Schedule is a cron expression
	Schedule string `json:"schedule"`

	// StaleAfterSeconds is the pending age before a generation is
	// marked failed
	StaleAfterSeconds int `json:"stale_after_seconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level"` // "debug", "info", "warn", "error"

	// Output is the log output
	Output string `json:"output"` // "stdout", "file"

	// FilePath is the path to the log file
	FilePath string `json:"file_path"`
}

// LoadConfig loads the configuration from a file and applies environment
// overrides
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)
	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "loom",
				User:     "loom",
				SSLMode:  "disable",
			},
		},
		Blob: BlobConfig{
			Type:          "memory",
			Bucket:        "media",
			Region:        "us-east-1",
			PublicBaseURL: "http://localhost:8080",
		},
		Auth: AuthConfig{
			TokenExpiration: 24,
			InitialCredits:  10,
		},
		Gateway: GatewayConfig{
			PollIntervalMs:  2500,
			MaxPollAttempts: 240,
		},
		Cache: CacheConfig{
			Type:       "memory",
			TTLSeconds: 300,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Janitor: JanitorConfig{
			Enabled:           true,
			Schedule:          "*/5 * * * *",
			StaleAfterSeconds: 900,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// ApplyEnvOverrides replaces config values from LOOM_* environment
// variables on an already constructed config
func ApplyEnvOverrides(config *Config) {
	applyEnvOverrides(config)
}

// applyEnvOverrides replaces config values from LOOM_* environment
// variables; secrets are usually supplied this way rather than in the
// config file
func applyEnvOverrides(config *Config) {
	setString := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	setInt := func(key string, target *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}

	setString("LOOM_SERVER_HOST", &config.Server.Host)
	setInt("LOOM_SERVER_PORT", &config.Server.Port)

	setString("LOOM_STORAGE_TYPE", &config.Storage.Type)
	setString("LOOM_POSTGRES_HOST", &config.Storage.Postgres.Host)
	setInt("LOOM_POSTGRES_PORT", &config.Storage.Postgres.Port)
	setString("LOOM_POSTGRES_DATABASE", &config.Storage.Postgres.Database)
	setString("LOOM_POSTGRES_USER", &config.Storage.Postgres.User)
	setString("LOOM_POSTGRES_PASSWORD", &config.Storage.Postgres.Password)
	setString("LOOM_POSTGRES_SSL_MODE", &config.Storage.Postgres.SSLMode)

	setString("LOOM_BLOB_TYPE", &config.Blob.Type)
	setString("LOOM_BLOB_BUCKET", &config.Blob.Bucket)
	setString("LOOM_BLOB_REGION", &config.Blob.Region)
	setString("LOOM_BLOB_ENDPOINT", &config.Blob.Endpoint)
	setString("LOOM_BLOB_ACCESS_KEY", &config.Blob.AccessKey)
	setString("LOOM_BLOB_SECRET_KEY", &config.Blob.SecretKey)
	setString("LOOM_BLOB_PUBLIC_BASE_URL", &config.Blob.PublicBaseURL)

	setString("LOOM_JWT_SECRET", &config.Auth.JWTSecret)
	setInt("LOOM_TOKEN_EXPIRATION", &config.Auth.TokenExpiration)
	setInt("LOOM_INITIAL_CREDITS", &config.Auth.InitialCredits)

	setString("LOOM_BILLING_BASE_URL", &config.Billing.BaseURL)
	setString("LOOM_BILLING_SECRET_KEY", &config.Billing.SecretKey)
	setString("LOOM_APP_BASE_URL", &config.Billing.AppBaseURL)

	setString("LOOM_GATEWAY_BASE_URL", &config.Gateway.BaseURL)
	setString("LOOM_GATEWAY_API_KEY", &config.Gateway.APIKey)
	setInt("LOOM_GATEWAY_POLL_INTERVAL_MS", &config.Gateway.PollIntervalMs)
	setInt("LOOM_GATEWAY_MAX_POLL_ATTEMPTS", &config.Gateway.MaxPollAttempts)

	setString("LOOM_LLM_BASE_URL", &config.LLM.BaseURL)
	setString("LOOM_LLM_API_KEY", &config.LLM.APIKey)
	setString("LOOM_LLM_DEFAULT_MODEL", &config.LLM.DefaultModel)

	setString("LOOM_CACHE_TYPE", &config.Cache.Type)
	setInt("LOOM_CACHE_TTL_SECONDS", &config.Cache.TTLSeconds)
	setString("LOOM_REDIS_ADDR", &config.Cache.Redis.Addr)
	setString("LOOM_REDIS_PASSWORD", &config.Cache.Redis.Password)
	setInt("LOOM_REDIS_DB", &config.Cache.Redis.DB)
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
