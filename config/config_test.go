package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env
	for _, k := range []string{"REDIS_URL", "CACHE_KEY_PREFIX", "CACHE_TIMEOUT_MS", "CACHE_CODEC", "CACHE_LOCAL_PROVIDER", "CACHE_LOCAL_SIZE", "CACHE_QUERY_SIZE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.False(t, cfg.Redis.SingleConnection)
	assert.Equal(t, "nextjs:", cfg.Cache.KeyPrefix)
	assert.Equal(t, "_sharedTags_", cfg.Cache.SharedTagsKey)
	assert.Equal(t, time.Second, cfg.Cache.Timeout)
	assert.Equal(t, int64(100), cfg.Cache.QuerySize)
	assert.Equal(t, "json", cfg.Cache.Codec)
	assert.Equal(t, "memory-cache", cfg.Cache.MemoryTag)
	assert.Equal(t, 30*time.Second, cfg.Cache.RetryInterval)
	assert.Equal(t, "lru", cfg.Local.Provider)
	assert.Equal(t, 1000, cfg.Local.Size)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REDIS_URL", "redis://cache:6380/2")
	t.Setenv("REDIS_SINGLE_CONNECTION", "yes")
	t.Setenv("REDIS_PING_INTERVAL", "10s")
	t.Setenv("CACHE_TIMEOUT_MS", "250")
	t.Setenv("CACHE_QUERY_SIZE", "500")
	t.Setenv("CACHE_CODEC", "MsgPack")
	t.Setenv("CACHE_LOCAL_PROVIDER", "ristretto")
	t.Setenv("CACHE_LOCAL_SIZE", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6380/2", cfg.Redis.URL)
	assert.True(t, cfg.Redis.SingleConnection)
	assert.Equal(t, 10*time.Second, cfg.Redis.PingInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.Timeout)
	assert.Equal(t, int64(500), cfg.Cache.QuerySize)
	assert.Equal(t, "msgpack", cfg.Cache.Codec)
	assert.Equal(t, "ristretto", cfg.Local.Provider)
	assert.Equal(t, 1000, cfg.Local.Size, "unparsable values fall back to the default")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CACHE_CODEC", "xml")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_CODEC")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CACHE_KEY_PREFIX=site:\nCACHE_LOCAL_ONLY=true\n"), 0o600))
	// godotenv never overrides variables that exist, even empty ones.
	unset(t, "CACHE_KEY_PREFIX", "CACHE_LOCAL_ONLY")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "site:", cfg.Cache.KeyPrefix)
	assert.True(t, cfg.Local.Only)
}

func TestBoolEnv(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "on": true, "0": false, "false": false, "off": false} {
		t.Setenv("X_FLAG", value)
		assert.Equal(t, want, getBoolEnv("X_FLAG", !want), value)
	}
}

// unset removes keys for the duration of the test.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}
