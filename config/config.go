package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisLockDB   int    `mapstructure:"REDIS_LOCK_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payment gateway.
	StripeKey string `mapstructure:"STRIPE_KEY"`

	// Workflow policy knobs (hours unless noted).
	AuthorizationWindowHours int     `mapstructure:"AUTH_WINDOW_HOURS"`
	RetryDeadlineHours       int     `mapstructure:"RETRY_DEADLINE_HOURS"`
	CaptureHoldHours         int     `mapstructure:"CAPTURE_HOLD_HOURS"`
	MinAdvanceNoticeHours    int     `mapstructure:"MIN_ADVANCE_NOTICE_HOURS"`
	MaxAuthAttempts          int     `mapstructure:"MAX_AUTH_ATTEMPTS"`
	PlatformFeeRate          float64 `mapstructure:"PLATFORM_FEE_RATE"`
	JobBatchSize             int     `mapstructure:"JOB_BATCH_SIZE"`

	// Availability rows older than this are removed by the nightly purge.
	AvailabilityRetentionDays int `mapstructure:"AVAILABILITY_RETENTION_DAYS"`

	// API rate limiting, per caller, requests per minute.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_LOCK_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("AUTH_WINDOW_HOURS", 24)
	viper.SetDefault("RETRY_DEADLINE_HOURS", 12)
	viper.SetDefault("CAPTURE_HOLD_HOURS", 24)
	viper.SetDefault("MIN_ADVANCE_NOTICE_HOURS", 2)
	viper.SetDefault("MAX_AUTH_ATTEMPTS", 5)
	viper.SetDefault("PLATFORM_FEE_RATE", 0.15)
	viper.SetDefault("JOB_BATCH_SIZE", 100)
	viper.SetDefault("AVAILABILITY_RETENTION_DAYS", 90)
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 120)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// AuthorizationWindow returns the lead time inside which an authorization is
// attempted immediately rather than scheduled.
func AuthorizationWindow() time.Duration {
	return time.Duration(AppConfig.AuthorizationWindowHours) * time.Hour
}

// RetryDeadline returns the hard cutoff before lesson start after which a
// failed authorization is no longer retried.
func RetryDeadline() time.Duration {
	return time.Duration(AppConfig.RetryDeadlineHours) * time.Hour
}

// CaptureHold returns how long after lesson completion capture waits, leaving
// room for dispute or no-show reporting.
func CaptureHold() time.Duration {
	return time.Duration(AppConfig.CaptureHoldHours) * time.Hour
}
