package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration for the ledger engine.
type Server struct {
	Addr string

	// DatabaseURL selects the postgres-backed ledger store; empty falls back
	// to the in-memory store (dev and tests).
	DatabaseURL string

	// RedisURL enables the distributed billing-tick lease; empty falls back
	// to the in-process lease.
	RedisURL string

	// KafkaBrokers enables the kafka audit publisher; empty falls back to the
	// in-memory publisher.
	KafkaBrokers []string
	AuditTopic   string

	// JWTSigningKey verifies upstream-issued donor tokens.
	JWTSigningKey string

	// TickSecret guards the internal billing-tick endpoint.
	TickSecret string

	TickInterval time.Duration
	CycleTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          getEnv("GIVEBRIDGE_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("GIVEBRIDGE_DATABASE_URL"),
		RedisURL:      os.Getenv("GIVEBRIDGE_REDIS_URL"),
		AuditTopic:    getEnv("GIVEBRIDGE_AUDIT_TOPIC", "givebridge.ledger.audit"),
		JWTSigningKey: os.Getenv("GIVEBRIDGE_JWT_SIGNING_KEY"),
		TickSecret:    os.Getenv("GIVEBRIDGE_TICK_SECRET"),
		TickInterval:  getDuration("GIVEBRIDGE_TICK_INTERVAL", time.Hour),
		CycleTimeout:  getDuration("GIVEBRIDGE_CYCLE_TIMEOUT", 30*time.Second),
	}

	if brokers := os.Getenv("GIVEBRIDGE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
