package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Security       SecurityConfig       `mapstructure:"security"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Bulk           BulkConfig           `mapstructure:"bulk"`
	Idempotency    IdempotencyConfig    `mapstructure:"idempotency"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	AccessTTL  int    `mapstructure:"access_token_ttl"`
	RefreshTTL int    `mapstructure:"refresh_token_ttl"`
	Issuer     string `mapstructure:"issuer"`
}

type SecurityConfig struct {
	SecretsProvider  string `mapstructure:"secrets_provider"` // "env", "aws_secrets_manager"
	AWSSecretsRegion string `mapstructure:"aws_secrets_region"`
	AWSSecretsPrefix string `mapstructure:"aws_secrets_prefix"`
	SecretsCacheTTL  int    `mapstructure:"secrets_cache_ttl"` // seconds
}

// LedgerConfig tunes the posting engine's optimistic concurrency behavior
type LedgerConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// BulkConfig bounds CSV bulk processing
type BulkConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// IdempotencyConfig controls the idempotency record store and its cleanup
type IdempotencyConfig struct {
	TTLHours        int    `mapstructure:"ttl_hours"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"` // cron expression
	CleanupBatch    int    `mapstructure:"cleanup_batch"`
}

// ReconciliationConfig contains the background sweep configuration
type ReconciliationConfig struct {
	SweepEnabled    bool `mapstructure:"sweep_enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	PageSize        int  `mapstructure:"page_size"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "banking_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 25)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.query_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 900)     // 15 minutes
	viper.SetDefault("jwt.refresh_token_ttl", 604800) // 7 days
	viper.SetDefault("jwt.issuer", "banking_service")

	// Security defaults
	viper.SetDefault("security.secrets_provider", "env")
	viper.SetDefault("security.aws_secrets_region", "us-east-1")
	viper.SetDefault("security.aws_secrets_prefix", "banking/")
	viper.SetDefault("security.secrets_cache_ttl", 300)

	// Ledger defaults: three attempts, 50ms initial backoff doubling per retry
	viper.SetDefault("ledger.max_attempts", 3)
	viper.SetDefault("ledger.retry_backoff_ms", 50)

	// Bulk defaults
	viper.SetDefault("bulk.max_upload_bytes", 5*1024*1024)

	// Idempotency defaults
	viper.SetDefault("idempotency.ttl_hours", 24)
	viper.SetDefault("idempotency.cleanup_schedule", "0 * * * *")
	viper.SetDefault("idempotency.cleanup_batch", 1000)

	// Reconciliation defaults
	viper.SetDefault("reconciliation.sweep_enabled", false)
	viper.SetDefault("reconciliation.interval_minutes", 60)
	viper.SetDefault("reconciliation.page_size", 500)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 0.1)
	viper.SetDefault("tracing.insecure", true)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// JWT
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}

	// Redis
	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
		viper.Set("redis.enabled", true)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	// Secrets provider
	if provider := os.Getenv("SECRETS_PROVIDER"); provider != "" {
		viper.Set("security.secrets_provider", provider)
	}
	if region := os.Getenv("AWS_SECRETS_REGION"); region != "" {
		viper.Set("security.aws_secrets_region", region)
	}

	// Tracing
	if collectorURL := os.Getenv("OTEL_COLLECTOR_URL"); collectorURL != "" {
		viper.Set("tracing.collector_url", collectorURL)
		viper.Set("tracing.enabled", true)
	}
	if sampleRate := os.Getenv("OTEL_SAMPLE_RATE"); sampleRate != "" {
		if rate, err := strconv.ParseFloat(sampleRate, 64); err == nil {
			viper.Set("tracing.sample_rate", rate)
		}
	}

	// Reconciliation sweep
	if sweep := os.Getenv("RECONCILIATION_SWEEP_ENABLED"); sweep != "" {
		if enabled, err := strconv.ParseBool(sweep); err == nil {
			viper.Set("reconciliation.sweep_enabled", enabled)
		}
	}
}

func validate(config *Config) error {
	if config.JWT.Secret == "" && config.Security.SecretsProvider == "env" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger max attempts must be at least 1")
	}

	if config.Ledger.RetryBackoffMs < 1 {
		return fmt.Errorf("ledger retry backoff must be positive")
	}

	if config.Bulk.MaxUploadBytes <= 0 {
		return fmt.Errorf("bulk max upload bytes must be positive")
	}

	if config.Idempotency.TTLHours < 1 {
		return fmt.Errorf("idempotency TTL must be at least one hour")
	}

	return nil
}
