package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the pipeline engine
	Config struct {
		// API server
		APIHost  string
		APIPort  int
		LogLevel string

		// MCP tool surface; zero disables it
		MCPPort int

		// Redis store
		Redis RedisConfig

		// Packet repository
		PacketInlineLimit int
		PacketBucketURL   string

		// Queue workers
		Workers      int
		ClaimTimeout time.Duration
		ReclaimAfter time.Duration

		// AI conversation loop
		MaxTurns        int
		ProviderTimeout time.Duration

		// Dedup retention
		DedupRetention time.Duration

		ShutdownTimeout time.Duration
	}

	// RedisConfig describes the Redis backing store connection
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultRedisPrefix   = "datamill"

	DefaultPacketInlineLimit = 256 * 1024
	MaxPacketInlineLimit     = 16 * 1024 * 1024

	DefaultWorkers      = 4
	MaxWorkers          = 256
	DefaultClaimTimeout = 5 * time.Second
	DefaultReclaimAfter = 5 * time.Minute

	DefaultMaxTurns = 12
	MinMaxTurns     = 1
	MaxMaxTurns     = 50

	DefaultProviderTimeout = 120 * time.Second
	DefaultDedupRetention  = 90 * 24 * time.Hour
	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrInvalidAPIPort      = errors.New("invalid API port")
	ErrInvalidWorkers      = errors.New("worker count must be positive")
	ErrInvalidInlineLimit  = errors.New("packet inline limit must be positive")
	ErrInvalidClaimTimeout = errors.New("claim timeout must be positive")
	ErrInvalidReclaimAfter = errors.New(
		"reclaim interval must exceed claim timeout",
	)
	ErrInvalidEnvInt = errors.New("invalid integer environment value")
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// engine settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",
		Redis: RedisConfig{
			Addr:   DefaultRedisEndpoint,
			DB:     DefaultRedisDB,
			Prefix: DefaultRedisPrefix,
		},
		PacketInlineLimit: DefaultPacketInlineLimit,
		PacketBucketURL:   "",
		Workers:           DefaultWorkers,
		ClaimTimeout:      DefaultClaimTimeout,
		ReclaimAfter:      DefaultReclaimAfter,
		MaxTurns:          DefaultMaxTurns,
		ProviderTimeout:   DefaultProviderTimeout,
		DedupRetention:    DefaultDedupRetention,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		c.Redis.Prefix = prefix
	}
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if bucketURL := os.Getenv("PACKET_BUCKET_URL"); bucketURL != "" {
		c.PacketBucketURL = bucketURL
	}

	if err := loadEnvInt("REDIS_DB", &c.Redis.DB, 0, 15); err != nil {
		return err
	}
	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt("MCP_PORT", &c.MCPPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"QUEUE_WORKERS", &c.Workers, 0, MaxWorkers,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"PACKET_INLINE_LIMIT", &c.PacketInlineLimit, 0, MaxPacketInlineLimit,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"AI_MAX_TURNS", &c.MaxTurns, 0, MaxMaxTurns,
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
	if c.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if c.PacketInlineLimit <= 0 {
		return ErrInvalidInlineLimit
	}
	if c.ClaimTimeout <= 0 {
		return ErrInvalidClaimTimeout
	}
	if c.ReclaimAfter <= c.ClaimTimeout {
		return ErrInvalidReclaimAfter
	}
	return nil
}

// ClampedMaxTurns returns the configured conversation turn bound clamped
// to the supported range
func (c *Config) ClampedMaxTurns() int {
	return min(max(c.MaxTurns, MinMaxTurns), MaxMaxTurns)
}

func loadEnvInt(name string, target *int, minVal, maxVal int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidEnvInt, name, raw)
	}
	if val < minVal || val > maxVal {
		return fmt.Errorf(
			"%w: %s=%d outside [%d, %d]", ErrInvalidEnvInt, name, val,
			minVal, maxVal,
		)
	}

	*target = val
	return nil
}
