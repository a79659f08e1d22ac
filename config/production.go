// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database      DatabaseConfig      `json:"database"`
	Server        ServerConfig        `json:"server"`
	Cache         CacheConfig         `json:"cache"`
	Delivery      DeliveryConfig      `json:"delivery"`
	Billing       BillingConfig       `json:"billing"`
	FeedbackStore FeedbackStoreConfig `json:"feedback_store"`
	Links         LinksConfig         `json:"links"`
	Queue         QueueConfig         `json:"queue"`
	Poller        PollerConfig        `json:"poller"`
	Logging       LoggingConfig       `json:"logging"`
	Metrics       MetricsConfig       `json:"metrics"`
	Environment   string              `json:"environment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

type CacheConfig struct {
	Enabled    bool          `json:"enabled"`
	Provider   string        `json:"provider"` // redis, memory
	RedisURL   string        `json:"redis_url"`
	ProfileTTL time.Duration `json:"profile_ttl"`
}

// DeliveryConfig configures the SMS gateway that carries review requests
type DeliveryConfig struct {
	ProviderDomain string        `json:"provider_domain"`
	APIKey         string        `json:"api_key"`
	SourceNumber   string        `json:"source_number"`
	RetryCount     int           `json:"retry_count"`
	ValidityPeriod int           `json:"validity_period"`
	Timeout        time.Duration `json:"timeout"`
}

// BillingConfig configures the subscription and credit service
type BillingConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

// FeedbackStoreConfig configures the remote feedback store the poller syncs from
type FeedbackStoreConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

// LinksConfig configures signed review link tokens
type LinksConfig struct {
	SecretKey string        `json:"secret_key"`
	TTL       time.Duration `json:"ttl"`
	Domain    string        `json:"domain"`
	Issuer    string        `json:"issuer"`
	ReviewURL string        `json:"review_url"`
}

// QueueConfig tunes the send queue drain pacing
type QueueConfig struct {
	BatchSize  int           `json:"batch_size"`
	ItemDelay  time.Duration `json:"item_delay"`
	BatchDelay time.Duration `json:"batch_delay"`
	MaxPending int           `json:"max_pending"`
}

// PollerConfig tunes the remote feedback sync loop
type PollerConfig struct {
	Interval      time.Duration `json:"interval"`
	LogDir        string        `json:"log_dir"`
	LogMaxSizeMB  int           `json:"log_max_size_mb"`
	LogMaxBackups int           `json:"log_max_backups"`
	LogMaxAgeDays int           `json:"log_max_age_days"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "revly"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://app.revly.io", "https://revly.io"}),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			Provider:   getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:   getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			ProfileTTL: getEnvDuration("CACHE_PROFILE_TTL", 5*time.Minute),
		},
		Delivery: DeliveryConfig{
			ProviderDomain: getEnvString("DELIVERY_PROVIDER_DOMAIN", "mock"),
			APIKey:         getEnvString("DELIVERY_API_KEY", ""),
			SourceNumber:   getEnvString("DELIVERY_SOURCE_NUMBER", ""),
			RetryCount:     getEnvInt("DELIVERY_RETRY_COUNT", 3),
			ValidityPeriod: getEnvInt("DELIVERY_VALIDITY_PERIOD", 300),
			Timeout:        getEnvDuration("DELIVERY_TIMEOUT", 30*time.Second),
		},
		Billing: BillingConfig{
			BaseURL: getEnvString("BILLING_BASE_URL", ""),
			APIKey:  getEnvString("BILLING_API_KEY", ""),
			Timeout: getEnvDuration("BILLING_TIMEOUT", 10*time.Second),
		},
		FeedbackStore: FeedbackStoreConfig{
			BaseURL: getEnvString("FEEDBACK_STORE_BASE_URL", ""),
			APIKey:  getEnvString("FEEDBACK_STORE_API_KEY", ""),
			Timeout: getEnvDuration("FEEDBACK_STORE_TIMEOUT", 30*time.Second),
		},
		Links: LinksConfig{
			SecretKey: getEnvString("LINKS_SECRET_KEY", ""),
			TTL:       getEnvDuration("LINKS_TTL", 30*24*time.Hour),
			Domain:    getEnvString("LINKS_DOMAIN", "revly.io"),
			Issuer:    getEnvString("LINKS_ISSUER", "revly"),
			ReviewURL: getEnvString("LINKS_REVIEW_URL", "https://g.page/r/review"),
		},
		Queue: QueueConfig{
			BatchSize:  getEnvInt("QUEUE_BATCH_SIZE", 10),
			ItemDelay:  getEnvDuration("QUEUE_ITEM_DELAY", 50*time.Millisecond),
			BatchDelay: getEnvDuration("QUEUE_BATCH_DELAY", 500*time.Millisecond),
			MaxPending: getEnvInt("QUEUE_MAX_PENDING", 10000),
		},
		Poller: PollerConfig{
			Interval:      getEnvDuration("POLLER_INTERVAL", 60*time.Second),
			LogDir:        getEnvString("POLLER_LOG_DIR", "data"),
			LogMaxSizeMB:  getEnvInt("POLLER_LOG_MAX_SIZE", 100),
			LogMaxBackups: getEnvInt("POLLER_LOG_MAX_BACKUPS", 10),
			LogMaxAgeDays: getEnvInt("POLLER_LOG_MAX_AGE", 30),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Format:     getEnvString("LOG_FORMAT", "json"),
			Output:     getEnvString("LOG_OUTPUT", "both"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/revly/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Environment: getEnvString("APP_ENV", "production"),
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate review link configuration
	if cfg.Links.SecretKey == "" {
		errors = append(errors, "LINKS_SECRET_KEY is required")
	}
	if len(cfg.Links.SecretKey) > 0 && len(cfg.Links.SecretKey) < 32 {
		errors = append(errors, "LINKS_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.Links.TTL <= 0 {
		errors = append(errors, "LINKS_TTL must be positive")
	}
	if cfg.Links.Issuer == "" {
		errors = append(errors, "LINKS_ISSUER is required")
	}

	// Validate delivery configuration if enabled
	if cfg.Delivery.ProviderDomain != "mock" {
		if cfg.Delivery.APIKey == "" {
			errors = append(errors, "DELIVERY_API_KEY is required for delivery provider")
		}
		if cfg.Delivery.SourceNumber == "" {
			errors = append(errors, "DELIVERY_SOURCE_NUMBER is required for delivery provider")
		}
	}

	// Validate queue configuration
	if cfg.Queue.BatchSize <= 0 {
		errors = append(errors, "QUEUE_BATCH_SIZE must be positive")
	}
	if cfg.Queue.MaxPending < cfg.Queue.BatchSize {
		errors = append(errors, "QUEUE_MAX_PENDING must be at least QUEUE_BATCH_SIZE")
	}

	// Validate poller configuration
	if cfg.Poller.Interval <= 0 {
		errors = append(errors, "POLLER_INTERVAL must be positive")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
