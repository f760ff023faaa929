package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sibling policies applied when a booking is accepted.
const (
	SiblingPolicyKeep       = "keep"
	SiblingPolicyAutoReject = "auto-reject"
)

// Event backends for post-commit change notifications.
const (
	EventsBackendRedis = "redis"
	EventsBackendKafka = "kafka"
	EventsBackendNone  = "none"
)

type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifeTime int // minutes
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

type Config struct {
	Environment   string
	Port          string
	DB            DBConfig
	JWTSecret     string
	RedisURL      string
	EventsBackend string
	KafkaBroker   string
	KafkaTopic    string
	SiblingPolicy string
	CORSOrigins   []string

	// agroview client settings
	APIBaseURL   string
	PollInterval time.Duration
}

func Load() (*Config, error) {
	// A missing .env is fine; plain environment variables still apply.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			User:            getEnv("DB_USER", "agrologix"),
			Password:        getEnv("DB_PASSWORD", "agrologix"),
			Name:            getEnv("DB_NAME", "agrologix"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			Port:            getEnvInt("DB_PORT", 5432),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifeTime: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 60),
		},
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		EventsBackend: strings.ToLower(getEnv("EVENTS_BACKEND", EventsBackendRedis)),
		KafkaBroker:   getEnv("KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "booking-events"),
		SiblingPolicy: strings.ToLower(getEnv("LIFECYCLE_SIBLING_POLICY", SiblingPolicyKeep)),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:8080/api"),
		PollInterval:  getEnvDuration("POLL_INTERVAL", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the API server cannot run without.
func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return fmt.Errorf("invalid DB config: host/user/name must not be empty")
	}
	switch c.SiblingPolicy {
	case SiblingPolicyKeep, SiblingPolicyAutoReject:
	default:
		return fmt.Errorf("LIFECYCLE_SIBLING_POLICY must be %q or %q, got %q",
			SiblingPolicyKeep, SiblingPolicyAutoReject, c.SiblingPolicy)
	}
	switch c.EventsBackend {
	case EventsBackendRedis, EventsBackendKafka, EventsBackendNone:
	default:
		return fmt.Errorf("EVENTS_BACKEND must be redis, kafka or none, got %q", c.EventsBackend)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("5s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
