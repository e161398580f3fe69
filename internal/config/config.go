package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config holds the ride simulator settings.
type Config struct {
	ServiceName string
	LogLevel    string
	OpsAddr     string
	Tracing     bool

	RedisAddr   string
	RedisPrefix string
	NATSURL     string
	NATSSubject string

	CandidateLimit int
	RankSeed       uint64

	Drivers    int
	Passengers int
	AcceptRate float64
	Location   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:    getenv("SERVICE_NAME", "ride-mediator"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		OpsAddr:        os.Getenv("OPS_ADDR"),
		Tracing:        parseBoolEnv("TRACE_STDOUT", false),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPrefix:    getenv("REDIS_QUEUE_PREFIX", "ride:queue:"),
		NATSURL:        os.Getenv("NATS_URL"),
		NATSSubject:    getenv("NATS_SUBJECT", "ride.events"),
		CandidateLimit: parseIntEnv("CANDIDATE_LIMIT", 4),
		RankSeed:       parseUintEnv("RANK_SEED", 0),
		Drivers:        parseIntEnv("DRIVERS", 6),
		Passengers:     parseIntEnv("PASSENGERS", 4),
		AcceptRate:     parseFloatEnv("ACCEPT_RATE", 0.7),
		Location:       getenv("PICKUP_LOCATION", "Some location"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and the log level.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.CandidateLimit <= 0 {
		return errors.New("CANDIDATE_LIMIT must be positive")
	}
	if c.Drivers < 0 || c.Passengers < 0 {
		return errors.New("DRIVERS and PASSENGERS must not be negative")
	}
	if c.AcceptRate < 0 || c.AcceptRate > 1 {
		return fmt.Errorf("ACCEPT_RATE %v outside [0,1]", c.AcceptRate)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseUintEnv(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
