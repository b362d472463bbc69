// Package config builds the process configuration from environment
// variables so main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server     Server
	Database   Database
	Redis      Redis
	Kafka      Kafka
	Authority  Authority
	Revocation Revocation
	STS        STS
	Credential Credential
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	// Host is the public host this service is reachable under; wallet DIDs
	// are derived from it.
	Host string
}

// Database configures the relational store. An empty URL selects the
// in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Redis configures the replay ledger backend. An empty URL falls back to the
// relational (or in-memory) ledger.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event sink. No brokers means audit events stay
// in process.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Authority identifies the operator wallet created at startup.
type Authority struct {
	BPN  string
	Name string
}

// Revocation points at the external revocation service.
type Revocation struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// STS carries token-pair policy.
type STS struct {
	TokenTTL time.Duration
}

// Credential carries issuance policy.
type Credential struct {
	Validity time.Duration
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envString("MIW_ADDR", ":8080"),
			JWTSigningKey: envString("MIW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envString("MIW_JWT_ISSUER", "miw"),
			Host:          envString("MIW_HOST", "localhost:8080"),
		},
		Database: Database{
			URL:          os.Getenv("MIW_DATABASE_URL"),
			MaxOpenConns: envInt("MIW_DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envInt("MIW_DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: Redis{
			URL:          os.Getenv("MIW_REDIS_URL"),
			PoolSize:     envInt("MIW_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("MIW_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("MIW_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("MIW_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("MIW_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("MIW_KAFKA_BROKERS"),
			Topic:   envString("MIW_KAFKA_AUDIT_TOPIC", "miw.audit"),
		},
		Authority: Authority{
			BPN:  envString("MIW_AUTHORITY_BPN", "BPNL000000000000"),
			Name: envString("MIW_AUTHORITY_NAME", "Authority Operator"),
		},
		Revocation: Revocation{
			URL:     os.Getenv("MIW_REVOCATION_URL"),
			Token:   os.Getenv("MIW_REVOCATION_TOKEN"),
			Timeout: envDuration("MIW_REVOCATION_TIMEOUT", 10*time.Second),
		},
		STS: STS{
			TokenTTL: envDuration("MIW_STS_TOKEN_TTL", 5*time.Minute),
		},
		Credential: Credential{
			Validity: envDuration("MIW_CREDENTIAL_VALIDITY", 365*24*time.Hour),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
