package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RabbitMQConfig holds the queue settings for the vision-analysis handoff.
type RabbitMQConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Exchange           string
	FilteredRoutingKey string
	Enabled            bool
}

// GetAMQPURL builds the AMQP connection URL from the config parts.
func (r *RabbitMQConfig) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

// Config holds all configuration for the post ingest pipeline service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Scrape provider configuration
	ScraperAPIURL   string
	ScraperAPIToken string
	WebhookSecret   string

	// Filter configuration
	AbsoluteMinEngagement float64
	MinLikesNoFollowers   int
	VisionCostPerImage    float64

	// Trend aggregation configuration
	TrendWindowSize int
	TrendTopN       int

	// Preview configuration
	PreviewDetailLimit int

	// RabbitMQ configuration
	RabbitMQ RabbitMQConfig

	// HTTP client timeout for dataset fetches
	FetchTimeout time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	config := &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "postpipeline"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Scrape provider defaults
		ScraperAPIURL:   getEnv("SCRAPER_API_URL", "https://api.apify.com"),
		ScraperAPIToken: getEnv("SCRAPER_API_TOKEN", ""),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),

		// Filter defaults. The absolute floor catches large accounts with
		// negligible real engagement; the like-count floor covers sources
		// that report no audience size.
		AbsoluteMinEngagement: getFloatEnv("ABSOLUTE_MIN_ENGAGEMENT", 0.005),
		MinLikesNoFollowers:   getIntEnv("MIN_LIKES_NO_FOLLOWERS", 50),
		VisionCostPerImage:    getFloatEnv("VISION_COST_PER_IMAGE", 0.025),

		// Trend defaults
		TrendWindowSize: getIntEnv("TREND_WINDOW_SIZE", 2000),
		TrendTopN:       getIntEnv("TREND_TOP_N", 10),

		// Preview defaults
		PreviewDetailLimit: getIntEnv("PREVIEW_DETAIL_LIMIT", 50),

		RabbitMQ: RabbitMQConfig{
			Host:               getEnv("RABBITMQ_HOST", "localhost"),
			Port:               getEnv("RABBITMQ_PORT", "5672"),
			User:               getEnv("RABBITMQ_USER", "guest"),
			Password:           getEnv("RABBITMQ_PASSWORD", "guest"),
			Exchange:           getEnv("RABBITMQ_EXCHANGE", "post-pipeline"),
			FilteredRoutingKey: getEnv("RABBITMQ_FILTERED_ROUTING_KEY", "posts.filtered"),
			Enabled:            getBoolEnv("RABBITMQ_ENABLED", true),
		},

		FetchTimeout: getDurationEnv("FETCH_TIMEOUT", 60*time.Second),
	}

	return config
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
