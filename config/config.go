// Package config reads the cache settings from the environment, after
// loading a .env file when one is present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Redis RedisConfig
	Cache CacheConfig
	Local LocalConfig
	Log   LogConfig
}

type RedisConfig struct {
	URL       string
	AccessKey string
	// SingleConnection shares one connection per process.
	SingleConnection bool
	PingInterval     time.Duration
	DialTimeout      time.Duration
}

type CacheConfig struct {
	KeyPrefix     string
	SharedTagsKey string
	Timeout       time.Duration
	QuerySize     int64
	Codec         string // json, msgpack or cbor
	MaxEntryBytes int
	MemoryTag     string
	RetryInterval time.Duration
}

type LocalConfig struct {
	// Only disables the remote store.
	Only     bool
	Provider string // lru, ristretto or bigcache
	Size     int
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// Load reads .env (if any) and the environment. Unparsable values fall back
// to their defaults; Validate reports settings that cannot work.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", "redis://localhost:6379"),
			AccessKey:        getEnv("REDIS_ACCESS_KEY", ""),
			SingleConnection: getBoolEnv("REDIS_SINGLE_CONNECTION", false),
			PingInterval:     getDurationEnv("REDIS_PING_INTERVAL", 0),
			DialTimeout:      getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			KeyPrefix:     getEnv("CACHE_KEY_PREFIX", "nextjs:"),
			SharedTagsKey: getEnv("CACHE_SHARED_TAGS_KEY", "_sharedTags_"),
			Timeout:       time.Duration(getIntEnv("CACHE_TIMEOUT_MS", 1000)) * time.Millisecond,
			QuerySize:     int64(getIntEnv("CACHE_QUERY_SIZE", 100)),
			Codec:         strings.ToLower(getEnv("CACHE_CODEC", "json")),
			MaxEntryBytes: getIntEnv("CACHE_MAX_ENTRY_BYTES", 0),
			MemoryTag:     getEnv("CACHE_MEMORY_TAG", "memory-cache"),
			RetryInterval: getDurationEnv("CACHE_RETRY_INTERVAL", 30*time.Second),
		},
		Local: LocalConfig{
			Only:     getBoolEnv("CACHE_LOCAL_ONLY", false),
			Provider: strings.ToLower(getEnv("CACHE_LOCAL_PROVIDER", "lru")),
			Size:     getIntEnv("CACHE_LOCAL_SIZE", 1000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component accepts.
func (c *Config) Validate() error {
	switch c.Cache.Codec {
	case "json", "msgpack", "cbor":
	default:
		return fmt.Errorf("config: CACHE_CODEC %q: want json, msgpack or cbor", c.Cache.Codec)
	}
	switch c.Local.Provider {
	case "lru", "ristretto", "bigcache":
	default:
		return fmt.Errorf("config: CACHE_LOCAL_PROVIDER %q: want lru, ristretto or bigcache", c.Local.Provider)
	}
	if c.Local.Size <= 0 {
		return fmt.Errorf("config: CACHE_LOCAL_SIZE must be positive, got %d", c.Local.Size)
	}
	if c.Cache.QuerySize <= 0 {
		return fmt.Errorf("config: CACHE_QUERY_SIZE must be positive, got %d", c.Cache.QuerySize)
	}
	if !c.Local.Only && c.Redis.URL == "" {
		return fmt.Errorf("config: REDIS_URL is required unless CACHE_LOCAL_ONLY is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv treats any non-empty value other than a false-like one as true,
// so REDIS_SINGLE_CONNECTION=1 and =yes both enable the flag.
func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	switch strings.ToLower(value) {
	case "no", "off":
		return false
	}
	return true
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
