// Package config loads cardvault settings from the environment and an optional .env file.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	Port               string        `env:"PORT" envDefault:"8080"`
	AppEnv             string        `env:"APP_ENV" envDefault:"development"`
	DBDriver           string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseDSN        string        `env:"DATABASE_URI" envDefault:"./cardvault.db"`
	AuthSecret         string        `env:"AUTH_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionCacheSize   int           `env:"SESSION_CACHE_SIZE" envDefault:"1024"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	SnapshotHour       int           `env:"SNAPSHOT_HOUR" envDefault:"23"`
	SnapshotWorkers    int           `env:"SNAPSHOT_WORKERS" envDefault:"4"`

	// Object storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"disk"`
	StorageDir     string `env:"STORAGE_DIR" envDefault:"./data/objects"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`

	// Client settings
	ServerURL      string        `env:"CARDVAULT_URL" envDefault:"http://localhost:8080"`
	TokenFile      string        `env:"TOKEN_FILE"`
	ClientRPS      float64       `env:"CLIENT_RPS" envDefault:"10"`
	RequestTimeout time.Duration `env:"CLIENT_TIMEOUT" envDefault:"15s"`
}

// Load reads .env (if present) and then the process environment, and fills derived defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterClientFlags lets command-line flags override the client settings loaded from the environment.
func (c *Config) RegisterClientFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ServerURL, "url", c.ServerURL, "cardvault server URL")
	fs.StringVar(&c.TokenFile, "token-file", c.TokenFile, "path to the saved session file")
	fs.DurationVar(&c.RequestTimeout, "timeout", c.RequestTimeout, "per-request timeout")
}

func (c *Config) applyDefaults() {
	if c.AuthSecret == "" {
		c.AuthSecret = "dev-secret-key"
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.TokenFile == "" {
		home, _ := os.UserHomeDir()
		c.TokenFile = filepath.Join(home, ".cardvault_session")
	}
	if c.SnapshotWorkers < 1 {
		c.SnapshotWorkers = 1
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}
	switch c.StorageBackend {
	case "disk":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (want disk or s3)", c.StorageBackend)
	}
	if c.SnapshotHour < 0 || c.SnapshotHour > 23 {
		return fmt.Errorf("SNAPSHOT_HOUR must be between 0 and 23, got %d", c.SnapshotHour)
	}
	return nil
}

// IsProduction reports whether the server runs with production logging.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
