package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "gantry.yaml"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultStorageBackend selects the in-process store.
	DefaultStorageBackend = "memory"
)

// Config is the application configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" env:"GANTRY_ADDR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"GANTRY_LOG_LEVEL"`

	Session SessionConfig `yaml:"session"`
	Storage StorageConfig `yaml:"storage"`
}

// SessionConfig configures the session layer.
type SessionConfig struct {
	// Secret is the base64-encoded AES key for cookie sessions. Decoded
	// length must be 16, 24 or 32 bytes.
	Secret string `yaml:"secret" env:"GANTRY_SESSION_SECRET"`

	// Key is the session cookie name.
	Key string `yaml:"key" env:"GANTRY_SESSION_KEY"`

	// MaxAge bounds session lifetime.
	MaxAge time.Duration `yaml:"max_age" env:"GANTRY_SESSION_MAX_AGE"`

	// Backend is "cookie" or "store".
	Backend string `yaml:"backend" env:"GANTRY_SESSION_BACKEND"`
}

// StorageConfig selects and configures the storage engine.
type StorageConfig struct {
	// Backend is one of memory, redis, sql, s3.
	Backend string `yaml:"backend" env:"GANTRY_STORAGE_BACKEND"`

	// RedisAddr is the redis host:port for the redis backend.
	RedisAddr string `yaml:"redis_addr" env:"GANTRY_STORAGE_REDIS_ADDR"`

	// DSN is the database connection string for the sql backend.
	DSN string `yaml:"dsn" env:"GANTRY_STORAGE_DSN"`

	// Dialect is postgres, mysql or sqlite for the sql backend.
	Dialect string `yaml:"dialect" env:"GANTRY_STORAGE_DIALECT"`

	// Bucket is the S3 bucket name for the s3 backend.
	Bucket string `yaml:"bucket" env:"GANTRY_STORAGE_BUCKET"`
}

// Default returns the configuration used when no file or environment is
// present.
func Default() Config {
	return Config{
		Addr:     DefaultAddr,
		LogLevel: "info",
		Session: SessionConfig{
			Key:     "session",
			MaxAge:  14 * 24 * time.Hour,
			Backend: "cookie",
		},
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
		},
	}
}

// Load reads gantry.yaml from dir, if present, then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the individual layers
// cannot see.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.Session.Backend {
	case "cookie", "store":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch c.Storage.Backend {
	case "memory", "redis", "sql", "s3":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Session.Backend == "cookie" && c.Session.Secret != "" {
		if _, err := c.SessionSecret(); err != nil {
			return err
		}
	}
	return nil
}

// SessionSecret decodes the configured session secret.
func (c Config) SessionSecret() ([]byte, error) {
	secret, err := base64.StdEncoding.DecodeString(c.Session.Secret)
	if err != nil {
		return nil, fmt.Errorf("session secret is not valid base64: %w", err)
	}
	switch len(secret) {
	case 16, 24, 32:
		return secret, nil
	default:
		return nil, fmt.Errorf("session secret decodes to %d bytes, need 16, 24 or 32", len(secret))
	}
}
