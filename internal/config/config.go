package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server settings
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"8080"`

	// Storage settings
	DBPath string `env:"DB_PATH" envDefault:"./data/mox.db"`

	// Mailbox settings
	MaxMessages   int   `env:"MAILBOX_MAX_MESSAGES" envDefault:"500"`
	MaxParseBytes int64 `env:"MAX_PARSE_BYTES" envDefault:"1000000"`

	// Security
	APIToken string `env:"API_TOKEN,required"`

	// Blob store (S3 or any S3-compatible endpoint)
	S3Bucket    string `env:"S3_BUCKET,required"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("API_TOKEN must not be blank")
	}

	if cfg.MaxMessages <= 0 {
		return nil, fmt.Errorf("MAILBOX_MAX_MESSAGES must be positive, got %d", cfg.MaxMessages)
	}
	if cfg.MaxParseBytes <= 0 {
		return nil, fmt.Errorf("MAX_PARSE_BYTES must be positive, got %d", cfg.MaxParseBytes)
	}

	return cfg, nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}
