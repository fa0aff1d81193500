package config

import (
	"os"
	"strconv"
	"time"

	"github.com/jws1910/saleworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration (sale-transition event stream)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration (cross-cycle block marks)
	MemcacheAddr string

	// Postgres identity store (subscribers + notifications)
	DatabaseURL string

	// HTTP surface
	HTTPAddr string

	// Scrape pipeline
	CatalogPath    string
	DefaultCountry string
	GroupSize      int
	GroupCooldown  time.Duration
	FetchTimeout   time.Duration
	HostRateLimit  float64
	CrawlInterval  time.Duration
	BlockMarkTTL   time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAXLEN", "1000"))
	groupSize, _ := strconv.Atoi(getEnv("SCRAPE_GROUP_SIZE", "5"))
	cooldownMs, _ := strconv.Atoi(getEnv("SCRAPE_GROUP_COOLDOWN_MS", "1000"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "15"))
	hostRate, _ := strconv.ParseFloat(getEnv("HOST_RATE_LIMIT", "1.0"), 64)
	crawlInterval, _ := strconv.Atoi(getEnv("CRAWL_INTERVAL_SECONDS", "3600"))
	blockTTL, _ := strconv.Atoi(getEnv("BLOCK_MARK_TTL_SECONDS", "1800"))

	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "saletransitions"),
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		DatabaseURL:          getEnv("DATABASE_URL", "postgres://localhost:5432/cherrypicked"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8090"),
		CatalogPath:          getEnv("CATALOG_PATH", "catalog.yaml"),
		DefaultCountry:       getEnv("DEFAULT_COUNTRY", "uk"),
		GroupSize:            groupSize,
		GroupCooldown:        time.Duration(cooldownMs) * time.Millisecond,
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		HostRateLimit:        hostRate,
		CrawlInterval:        time.Duration(crawlInterval) * time.Second,
		BlockMarkTTL:         time.Duration(blockTTL) * time.Second,
		Environment:          getEnv("SALEWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.GroupSize <= 0 {
		return errors.NewConfiguration("scrape group size must be positive", nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("fetch timeout must be positive", nil)
	}
	if c.CatalogPath == "" {
		return errors.NewConfiguration("catalog path must be set", nil)
	}
	if c.HostRateLimit <= 0 {
		return errors.NewConfiguration("host rate limit must be positive", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
