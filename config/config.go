package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all app configuration
type Config struct {
	// Server
	HTTPPort string

	// Upstream market-data API
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// Caching: the engine's own quote cache runs a short TTL; general
	// market-data reads keep values longer.
	QuoteCacheTTL  time.Duration
	MarketCacheTTL time.Duration

	// Rate limiting: minimum spacing between upstream calls, process-wide.
	RateMinInterval time.Duration

	// Sweep scheduling
	SweepInterval   time.Duration
	SweepBatchSize  int
	SweepBatchDelay time.Duration

	// Redis (alert document store)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse (trigger history, optional)
	ClickhouseAddr     string
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseTimeout  int

	// Kafka (trigger-event notifier, optional)
	KafkaBrokers []string
	KafkaTopic   string

	// App settings
	Debug bool
}

// LoadConfig loads configuration from environment variables, with optional .env file
func LoadConfig() *Config {
	// Load .env file if it exists; a missing file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		// Server
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		// Upstream
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:9090"),
		UpstreamTimeout: getEnvAsMillis("UPSTREAM_TIMEOUT_MS", 5000),

		// Caching
		QuoteCacheTTL:  getEnvAsSeconds("QUOTE_CACHE_TTL_SECONDS", 30),
		MarketCacheTTL: getEnvAsSeconds("MARKET_CACHE_TTL_SECONDS", 300),

		// Rate limiting
		RateMinInterval: getEnvAsMillis("RATE_MIN_INTERVAL_MS", 1500),

		// Sweeping. Batch size and delay guard against upstream rate
		// limits beyond the per-call spacing; the right values depend on
		// the actual upstream's undocumented limits.
		SweepInterval:   getEnvAsSeconds("SWEEP_INTERVAL_SECONDS", 30),
		SweepBatchSize:  getEnvAsInt("SWEEP_BATCH_SIZE", 2),
		SweepBatchDelay: getEnvAsMillis("SWEEP_BATCH_DELAY_MS", 2000),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// ClickHouse
		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", ""),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseTimeout:  getEnvAsInt("CLICKHOUSE_TIMEOUT", 10),

		// Kafka
		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", nil, ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", ""),

		// App settings
		Debug: getEnvAsBool("DEBUG", false),
	}

	return cfg
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}

func getEnvAsSeconds(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultVal)) * time.Second
}

func getEnvAsMillis(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultVal)) * time.Millisecond
}
