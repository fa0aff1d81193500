package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, 5, config.GroupSize)
	assert.Equal(t, time.Second, config.GroupCooldown)
	assert.Equal(t, 15*time.Second, config.FetchTimeout)
	assert.Equal(t, "uk", config.DefaultCountry)
	assert.Equal(t, "catalog.yaml", config.CatalogPath)

	// Test with environment variables
	os.Setenv("REDIS_ADDR", "redis.example.com:6379")
	os.Setenv("SCRAPE_GROUP_SIZE", "3")
	os.Setenv("SCRAPE_GROUP_COOLDOWN_MS", "250")
	os.Setenv("FETCH_TIMEOUT_SECONDS", "5")
	os.Setenv("DEFAULT_COUNTRY", "fr")

	config = LoadConfig()
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 3, config.GroupSize)
	assert.Equal(t, 250*time.Millisecond, config.GroupCooldown)
	assert.Equal(t, 5*time.Second, config.FetchTimeout)
	assert.Equal(t, "fr", config.DefaultCountry)

	// Clean up
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("SCRAPE_GROUP_SIZE")
	os.Unsetenv("SCRAPE_GROUP_COOLDOWN_MS")
	os.Unsetenv("FETCH_TIMEOUT_SECONDS")
	os.Unsetenv("DEFAULT_COUNTRY")
}

func TestValidate(t *testing.T) {
	config := LoadConfig()
	assert.NoError(t, config.Validate())

	bad := config
	bad.GroupSize = 0
	assert.Error(t, bad.Validate())

	bad = config
	bad.FetchTimeout = 0
	assert.Error(t, bad.Validate())

	bad = config
	bad.CatalogPath = ""
	assert.Error(t, bad.Validate())
}
