// Package config defines the studio client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration shared by the CLI and the dev server.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	DevServer DevServerConfig `yaml:"devserver"`
	Trace     bool            `yaml:"trace"`
}

// APIConfig controls the remote resource gateway.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"` // includes the /api prefix
	Token           string        `yaml:"token"`
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
}

// CacheConfig controls client-side caches.
type CacheConfig struct {
	AgentTTL time.Duration `yaml:"agent_ttl"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// DevServerConfig controls the in-memory development backend.
type DevServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "http://localhost:5001/api",
			Timeout:         30 * time.Second,
			BreakerFailures: 5,
		},
		Cache: CacheConfig{
			AgentTTL: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		DevServer: DevServerConfig{
			Addr: ":5001",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file at path, and finally the environment.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STUDIO_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("STUDIO_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("STUDIO_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STUDIO_HTTP_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if v := os.Getenv("STUDIO_BREAKER_FAILURES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("STUDIO_BREAKER_FAILURES: %w", err)
		}
		c.API.BreakerFailures = uint32(n)
	}
	if v := os.Getenv("STUDIO_AGENT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STUDIO_AGENT_CACHE_TTL: %w", err)
		}
		c.Cache.AgentTTL = d
	}
	if v := os.Getenv("STUDIO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STUDIO_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("STUDIO_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STUDIO_LOG_JSON: %w", err)
		}
		c.Log.JSON = b
	}
	if v := os.Getenv("STUDIO_TRACE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STUDIO_TRACE: %w", err)
		}
		c.Trace = b
	}
	if v := os.Getenv("DEVSERVER_ADDR"); v != "" {
		c.DevServer.Addr = v
	}
	if v := os.Getenv("DEVSERVER_JWT_SECRET"); v != "" {
		c.DevServer.JWTSecret = v
	}
	return nil
}

// Validate checks the fields the client cannot work without.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.Cache.AgentTTL <= 0 {
		return errors.New("cache.agent_ttl must be positive")
	}
	return nil
}
