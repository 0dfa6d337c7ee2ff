// Package config loads server settings from the environment and
// assembles a fragments.Service from them.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-fragments/pkg/fragments/objectkey"
)

// ServerConfig is read from environment variables by cleanenv.
//
//	PORT               listen port (default 8080)
//	ENVIRONMENT        "development" enables console logging (default development)
//	API_URL            public base URL for Location headers
//	LOG_LEVEL          debug, info, warn or error (default info)
//	JWT_SECRET         HS256 key used to verify bearer tokens (required)
//	DATABASE_URL       "memory" or "postgres://..." (default memory)
//	STORAGE_URL        "memory://", "file:///path" or "s3://bucket?region=..&endpoint=.." (default memory://)
//	FS_COMPRESS        zstd-compress bytes in file:// storage
//	OBJECT_KEY_LAYOUT  "flat" or "sharded" (default flat)
//	REDIS_URL          enables the conversion cache when set
//	CACHE_TTL          conversion cache entry lifetime (default 1h)
//	MAX_FRAGMENT_SIZE  request body limit in bytes (default 5 MiB)
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	APIURL      string `env:"API_URL"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	JWTSecret   string `env:"JWT_SECRET"`

	DatabaseURL     string `env:"DATABASE_URL" env-default:"memory"`
	StorageURL      string `env:"STORAGE_URL" env-default:"memory://"`
	FSCompress      bool   `env:"FS_COMPRESS" env-default:"false"`
	ObjectKeyLayout string `env:"OBJECT_KEY_LAYOUT" env-default:"flat"`

	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" env-default:"1h"`

	MaxFragmentSize int64 `env:"MAX_FRAGMENT_SIZE" env-default:"5242880"`

	S3 S3Config
}

// S3Config carries credentials and encryption settings that do not fit
// in STORAGE_URL.
type S3Config struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION"`
	SSEAlgorithm    string `env:"S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID"`
}

// Load reads and validates the configuration from the environment.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MaxFragmentSize <= 0 {
		return errors.New("MAX_FRAGMENT_SIZE must be positive")
	}
	if _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}
	if _, err := ParseStorageURL(c.StorageURL); err != nil {
		return err
	}
	if _, err := objectkey.New(c.ObjectKeyLayout); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment reports whether ENVIRONMENT is development.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// JWTAuth returns the HS256 verifier for bearer tokens.
func (c *ServerConfig) JWTAuth() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(c.JWTSecret), nil)
}
