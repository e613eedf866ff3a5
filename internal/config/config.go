// Package config loads foliochat settings from a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: log_level is read from
// FOLIOCHAT_LOG_LEVEL and backend.url from FOLIOCHAT_BACKEND_URL.
const EnvPrefix = "FOLIOCHAT"

type Config struct {
	DataDir   string        `mapstructure:"data_dir"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Backend   BackendConfig `mapstructure:"backend"`
	HTTP      HTTPConfig    `mapstructure:"http"`
	Chat      ChatConfig    `mapstructure:"chat"`
	Retry     RetryConfig   `mapstructure:"retry"`

	path     string
	settings map[string]any
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	Listen       string        `mapstructure:"listen"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type ChatConfig struct {
	PageSize             int `mapstructure:"page_size"`
	MaxConcurrentEffects int `mapstructure:"max_concurrent_effects"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// DefaultDir is where the config file and identity live unless overridden.
func DefaultDir() string {
	return filepath.Join(os.Getenv("HOME"), ".foliochat")
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("backend.url", "http://0.0.0.0:8000/api")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("http.listen", ":3000")
	v.SetDefault("http.cookie_name", "user_cookie")
	v.SetDefault("http.cookie_max_age", "8760h")
	v.SetDefault("http.secure_cookie", false)
	v.SetDefault("chat.page_size", 50)
	v.SetDefault("chat.max_concurrent_effects", 4)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "250ms")
	v.SetDefault("retry.max_delay", "5s")
}

// Load reads the config file at path, writing the defaults there first if
// it does not exist. A .env file in the working directory is loaded into
// the environment before overrides are applied.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("backend.url", EnvPrefix+"_BACKEND_URL", "BACKEND_API_URL"); err != nil {
		return nil, fmt.Errorf("bind backend url: %w", err)
	}
	if err := v.BindEnv("backend.api_key", EnvPrefix+"_BACKEND_API_KEY", "BACKEND_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind backend api key: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.path = path
	cfg.settings = Flatten(v.AllSettings())
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// writeDefaults writes the default settings to path through a temporary
// file so a reader never sees a partial config.
func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	d := viper.New()
	setDefaults(d)
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".yaml"
	}
	tmpPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".tmp" + ext
	if err := d.WriteConfigAs(tmpPath); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
