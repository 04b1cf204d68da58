package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration (import job ledger)
	Database DatabaseConfig

	// Import engine configuration
	Import ImportConfig

	// Remote platform credentials
	WordPress   WordPressConfig
	WooCommerce WooCommerceConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ImportConfig tunes the batch upsert engine. The user path historically
// ran wider chunks through a pool of five workers with a pause between
// chunks; the customer path ran smaller chunks fully fanned out.
type ImportConfig struct {
	UserChunkSize     int
	UserConcurrency   int
	CustomerChunkSize int
	ChunkPause        time.Duration
	MaxUploadSize     int64 // in bytes
	UploadDir         string
}

// WordPressConfig holds user-store API credentials
type WordPressConfig struct {
	SiteURL     string
	User        string
	AppPassword string
}

// WooCommerceConfig holds customer-store API credentials
type WooCommerceConfig struct {
	SiteURL        string
	ConsumerKey    string
	ConsumerSecret string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables, with a .env file
// as fallback for local development.
func Load() (*Config, error) {
	godotenv.Load()

	siteURL := getEnv("WP_SITE", "")

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 300*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "customer_import"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Import: ImportConfig{
			UserChunkSize:     getIntEnv("IMPORT_USER_CHUNK_SIZE", 50),
			UserConcurrency:   getIntEnv("IMPORT_USER_CONCURRENCY", 5),
			CustomerChunkSize: getIntEnv("IMPORT_CUSTOMER_CHUNK_SIZE", 10),
			ChunkPause:        getDurationEnv("IMPORT_CHUNK_PAUSE", time.Second),
			MaxUploadSize:     getInt64Env("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB
			UploadDir:         getEnv("UPLOAD_DIR", "./data/uploads"),
		},
		WordPress: WordPressConfig{
			SiteURL:     siteURL,
			User:        getEnv("WP_USER", ""),
			AppPassword: getEnv("WP_APP_PASSWORD", ""),
		},
		WooCommerce: WooCommerceConfig{
			SiteURL:        siteURL,
			ConsumerKey:    getEnv("WC_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("WC_CONSUMER_SECRET", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid. Missing remote
// credentials are a startup failure, never a mid-batch one.
func (c *Config) Validate() error {
	if c.WordPress.SiteURL == "" {
		return fmt.Errorf("WP_SITE is required")
	}
	if c.WordPress.User == "" || c.WordPress.AppPassword == "" {
		return fmt.Errorf("WP_USER and WP_APP_PASSWORD are required")
	}
	if c.WooCommerce.ConsumerKey == "" || c.WooCommerce.ConsumerSecret == "" {
		return fmt.Errorf("WC_CONSUMER_KEY and WC_CONSUMER_SECRET are required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
