package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aryan0dhankhar/rentledger/pkg/database"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const devJWTSecret = "change-me-in-production"

// Config holds the application configuration
type Config struct {
	Environment        string          `yaml:"environment"`
	ServerPort         int             `yaml:"server_port"`
	LogLevel           string          `yaml:"log_level"`
	CORSAllowedOrigins []string        `yaml:"cors_allowed_origins"`
	StorageDriver      string          `yaml:"storage_driver"`
	Database           database.Config `yaml:"database"`
	JWT                JWT             `yaml:"jwt"`
	RedisURL           string          `yaml:"redis_url"`
	RateLimit          RateLimit       `yaml:"rate_limit"`
	Kafka              Kafka           `yaml:"kafka"`
	AuditBufferSize    int             `yaml:"audit_buffer_size"`
	OTLPEndpoint       string          `yaml:"otlp_endpoint"`
	LatePayments       LatePayments    `yaml:"late_payments"`
}

// JWT configures token signing
type JWT struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

// RateLimit caps requests per caller per window
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Kafka configures the audit sink; no brokers means no Kafka sink
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LatePayments configures the overdue payment sweep
type LatePayments struct {
	Interval  time.Duration `yaml:"interval"`
	GraceDays int           `yaml:"grace_days"`
}

// Grace is the configured grace period as a duration
func (l LatePayments) Grace() time.Duration {
	return time.Duration(l.GraceDays) * 24 * time.Hour
}

// Default returns the development configuration
func Default() *Config {
	return &Config{
		Environment: "development",
		ServerPort:  8080,
		LogLevel:    "info",
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		StorageDriver:   DriverPostgres,
		Database:        *database.DefaultConfig(),
		JWT:             JWT{Secret: devJWTSecret, Issuer: "rentledger", TTL: 24 * time.Hour},
		RateLimit:       RateLimit{Requests: 100, Window: time.Minute},
		Kafka:           Kafka{Topic: "rentledger.audit"},
		AuditBufferSize: 1024,
		LatePayments:    LatePayments{Interval: time.Hour, GraceDays: 5},
	}
}

// Load reads configuration. Later sources win: defaults, the YAML file named
// by CONFIG_FILE, a .env file in the working directory, then the environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"), ".env")
}

// LoadFrom is Load with explicit file locations; empty paths are skipped
func LoadFrom(yamlPath, dotenvPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
	}

	dotenv := map[string]string{}
	if dotenvPath != "" {
		m, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
	}

	env := source{dotenv: dotenv}
	env.str("ENVIRONMENT", &cfg.Environment)
	env.int("SERVER_PORT", &cfg.ServerPort)
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.csv("CORS_ALLOWED_ORIGINS", &cfg.CORSAllowedOrigins)
	env.str("STORAGE_DRIVER", &cfg.StorageDriver)
	env.str("DB_HOST", &cfg.Database.Host)
	env.int("DB_PORT", &cfg.Database.Port)
	env.str("DB_USER", &cfg.Database.User)
	env.str("DB_PASSWORD", &cfg.Database.Password)
	env.str("DB_NAME", &cfg.Database.Database)
	env.str("DB_SSLMODE", &cfg.Database.SSLMode)
	env.int("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	env.int("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	env.duration("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
	env.str("JWT_SECRET", &cfg.JWT.Secret)
	env.str("JWT_ISSUER", &cfg.JWT.Issuer)
	env.duration("JWT_TTL", &cfg.JWT.TTL)
	env.str("REDIS_URL", &cfg.RedisURL)
	env.int("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	env.duration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	env.csv("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	env.str("KAFKA_AUDIT_TOPIC", &cfg.Kafka.Topic)
	env.int("AUDIT_BUFFER_SIZE", &cfg.AuditBufferSize)
	env.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	env.duration("LATE_PAYMENT_INTERVAL", &cfg.LatePayments.Interval)
	env.int("LATE_PAYMENT_GRACE_DAYS", &cfg.LatePayments.GraceDays)
	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.StorageDriver != DriverPostgres && c.StorageDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("invalid STORAGE_DRIVER %q: want %s or %s", c.StorageDriver, DriverPostgres, DriverMemory))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.ServerPort))
	}
	if c.Environment == "production" && (c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit requests and window must be positive"))
	}
	if c.LatePayments.Interval <= 0 || c.LatePayments.GraceDays < 0 {
		errs = append(errs, errors.New("late payment interval must be positive and grace days non-negative"))
	}
	return errors.Join(errs...)
}

// source resolves a key from the process environment, then from .env
type source struct {
	dotenv map[string]string
	errs   []error
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := s.dotenv[key]
	return v, ok && v != ""
}

func (s *source) str(key string, dst *string) {
	if v, ok := s.lookup(key); ok {
		*dst = v
	}
}

func (s *source) int(key string, dst *int) {
	v, ok := s.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = n
}

func (s *source) duration(key string, dst *time.Duration) {
	v, ok := s.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = d
}

func (s *source) csv(key string, dst *[]string) {
	v, ok := s.lookup(key)
	if !ok {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
