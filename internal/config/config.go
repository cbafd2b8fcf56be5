// Package config loads coordinator settings from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration settings for the drafting coordinator
type Config struct {
	// API server
	APIHost  string
	APIPort  int
	LogLevel string

	// External collaborators
	EngineURL     string
	BucketURL     string
	ProjectID     string
	ClientTimeout time.Duration

	// Artifact layout
	PrimaryRoot string
	LegacyRoot  string

	// Coordinator
	PollInterval     time.Duration
	ContentCacheSize int
	ShutdownTimeout  time.Duration
}

const (
	DefaultAPIHost = "0.0.0.0"
	DefaultAPIPort = 8090
	MaxTCPPort     = 65535

	DefaultEngineURL     = "http://localhost:8000"
	DefaultBucketURL     = "mem://"
	DefaultClientTimeout = 30 * time.Second

	// Step outputs moved roots between pipeline revisions. Reads fall
	// back to the legacy root; writes always target the primary root
	DefaultPrimaryRoot = "phase7_outputs"
	DefaultLegacyRoot  = "phase6_outputs"

	DefaultPollInterval     = 2500 * time.Millisecond
	DefaultContentCacheSize = 64
	DefaultShutdownTimeout  = 10 * time.Second

	MaxPollInterval     = time.Hour
	MaxContentCacheSize = 4096
)

var (
	ErrInvalidAPIPort      = errors.New("invalid API port")
	ErrInvalidPollInterval = errors.New("poll interval must be positive")
	ErrMissingEngineURL    = errors.New("engine URL is required")
	ErrMissingBucketURL    = errors.New("bucket URL is required")
	ErrMissingProjectID    = errors.New("project ID is required")
	ErrRootsOverlap        = errors.New(
		"primary and legacy roots must differ",
	)
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// coordinator, backend client, and artifact layout
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:          DefaultAPIHost,
		APIPort:          DefaultAPIPort,
		LogLevel:         "info",
		EngineURL:        DefaultEngineURL,
		BucketURL:        DefaultBucketURL,
		ClientTimeout:    DefaultClientTimeout,
		PrimaryRoot:      DefaultPrimaryRoot,
		LegacyRoot:       DefaultLegacyRoot,
		PollInterval:     DefaultPollInterval,
		ContentCacheSize: DefaultContentCacheSize,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if host := os.Getenv("API_HOST"); host != "" {
		c.APIHost = host
	}
	if url := os.Getenv("ENGINE_URL"); url != "" {
		c.EngineURL = url
	}
	if url := os.Getenv("BUCKET_URL"); url != "" {
		c.BucketURL = url
	}
	if id := os.Getenv("PROJECT_ID"); id != "" {
		c.ProjectID = id
	}
	if root := os.Getenv("PRIMARY_ROOT"); root != "" {
		c.PrimaryRoot = root
	}
	if root := os.Getenv("LEGACY_ROOT"); root != "" {
		c.LegacyRoot = root
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"CONTENT_CACHE_SIZE", &c.ContentCacheSize, 0, MaxContentCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"POLL_INTERVAL_MS", &c.PollInterval, MaxPollInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"CLIENT_TIMEOUT_MS", &c.ClientTimeout, MaxPollInterval,
	); err != nil {
		return err
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.EngineURL == "" {
		return ErrMissingEngineURL
	}
	if c.BucketURL == "" {
		return ErrMissingBucketURL
	}
	if c.ProjectID == "" {
		return ErrMissingProjectID
	}
	if c.PrimaryRoot == c.LegacyRoot {
		return fmt.Errorf("%w: %s", ErrRootsOverlap, c.PrimaryRoot)
	}
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key as a millisecond count
func loadEnvDuration(key string, dst *time.Duration, max time.Duration) error {
	var ms int64
	if err := loadEnvInt(key, &ms, 0, max.Milliseconds()); err != nil {
		return err
	}
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
	return nil
}
