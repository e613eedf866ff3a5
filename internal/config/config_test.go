package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestLoadWritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults should be written when the file is missing")
	_, err = os.Stat(filepath.Join(filepath.Dir(path), "config.tmp.yaml"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "http://0.0.0.0:8000/api", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "user_cookie", cfg.HTTP.CookieName)
	assert.Equal(t, 365*24*time.Hour, cfg.HTTP.CookieMaxAge)
	assert.Equal(t, 50, cfg.Chat.PageSize)
	assert.Equal(t, 4, cfg.Chat.MaxConcurrentEffects)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, path, cfg.Path())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, again.Backend)
}

func TestLoadReadsFile(t *testing.T) {
	path := tempConfigPath(t)
	data := []byte("log_level: debug\nbackend:\n  url: http://backend:9000/api\n  timeout: 5s\nchat:\n  page_size: 20\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://backend:9000/api", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 20, cfg.Chat.PageSize)
	assert.Equal(t, "user_cookie", cfg.HTTP.CookieName)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0644))

	t.Setenv("FOLIOCHAT_LOG_LEVEL", "warn")
	t.Setenv("FOLIOCHAT_CHAT_PAGE_SIZE", "10")
	t.Setenv("BACKEND_API_URL", "http://legacy:8000/api")
	t.Setenv("FOLIOCHAT_BACKEND_API_KEY", "sk-secret-1234")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Chat.PageSize)
	assert.Equal(t, "http://legacy:8000/api", cfg.Backend.URL)
	assert.Equal(t, "sk-secret-1234", cfg.Backend.APIKey)

	t.Setenv("FOLIOCHAT_BACKEND_URL", "http://preferred:8000/api")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://preferred:8000/api", cfg.Backend.URL)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSettingsMasksSecrets(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("FOLIOCHAT_BACKEND_API_KEY", "sk-very-secret-abcd")

	cfg, err := Load(path)
	require.NoError(t, err)

	settings := cfg.Settings()
	values := make(map[string]string, len(settings))
	for i, s := range settings {
		values[s.Key] = s.Value
		if i > 0 {
			assert.Less(t, settings[i-1].Key, s.Key)
		}
	}
	assert.Equal(t, "***abcd", values["backend.api_key"])
	assert.Equal(t, "info", values["log_level"])
	assert.Equal(t, "http://0.0.0.0:8000/api", values["backend.url"])
}
