// Package config loads the process configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Auth      Auth
	Postgres  Postgres
	Redis     RedisConfig
	S3        S3
	SIF       SIF
	RENAPO    RENAPO
	Scanner   Scanner
	Kafka     Kafka
	Session   Session
	RateLimit RateLimit
	Refdata   Refdata
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Auth holds token verification settings.
type Auth struct {
	JWTSigningKey string
}

// Postgres holds the backup database settings. An empty URL disables the
// institutional copy.
type Postgres struct {
	URL string
}

// RedisConfig holds cache connection settings. An empty URL disables the
// refdata cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// S3 holds photo storage settings. An empty bucket keeps uploads in
// memory, which only makes sense for local development.
type S3 struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// SIF is the case-management backend.
type SIF struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RENAPO is the population registry.
type RENAPO struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Scanner is the document OCR service. An empty URL disables scanning.
type Scanner struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Kafka holds audit pipeline settings. No brokers means audit events go to
// the in-memory sink.
type Kafka struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// Session controls in-memory session retention.
type Session struct {
	IdleTTL         time.Duration
	JanitorInterval time.Duration
}

// RateLimit bounds requests to the endpoints that call remote registries,
// per client IP. Zero disables the limiter.
type RateLimit struct {
	RemoteChecksPerMinute int
}

// Refdata is the geographic catalog service.
type Refdata struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// FromEnv builds the configuration from environment variables, with
// development defaults for everything but secrets.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envOr("INTAKE_ADDR", ":8080"),
		},
		Auth: Auth{
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		S3: S3{
			Bucket:   os.Getenv("S3_BUCKET"),
			Region:   envOr("S3_REGION", "us-east-1"),
			Endpoint: os.Getenv("S3_ENDPOINT"),
			Prefix:   envOr("S3_PREFIX", "fotografias/"),
		},
		SIF: SIF{
			BaseURL: envOr("SIF_BASE_URL", "http://localhost:9001"),
			APIKey:  os.Getenv("SIF_API_KEY"),
			Timeout: envDuration("SIF_TIMEOUT", 10*time.Second),
		},
		RENAPO: RENAPO{
			BaseURL: envOr("RENAPO_BASE_URL", "http://localhost:9002"),
			APIKey:  os.Getenv("RENAPO_API_KEY"),
			Timeout: envDuration("RENAPO_TIMEOUT", 10*time.Second),
		},
		Scanner: Scanner{
			BaseURL: os.Getenv("SCANNER_BASE_URL"),
			APIKey:  os.Getenv("SCANNER_API_KEY"),
			Timeout: envDuration("SCANNER_TIMEOUT", 30*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "intake.audit"),
			Buffer:  envInt("KAFKA_AUDIT_BUFFER", 256),
		},
		Session: Session{
			IdleTTL:         envDuration("SESSION_IDLE_TTL", 30*time.Minute),
			JanitorInterval: envDuration("SESSION_JANITOR_INTERVAL", time.Minute),
		},
		RateLimit: RateLimit{
			RemoteChecksPerMinute: envInt("RATE_LIMIT_REMOTE_PER_MIN", 10),
		},
		Refdata: Refdata{
			BaseURL:  envOr("REFDATA_BASE_URL", "http://localhost:9003"),
			Timeout:  envDuration("REFDATA_TIMEOUT", 10*time.Second),
			CacheTTL: envDuration("REFDATA_CACHE_TTL", 12*time.Hour),
		},
	}
}

func envOr(key, fallback string) string {
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
