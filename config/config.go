// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Mpesa    MpesaConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Intent   IntentConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DatabaseConfig selects and configures the ledger store. Driver is
// "postgres" or "memory"; the memory store is for local runs only.
type DatabaseConfig struct {
	Driver          string
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectRetries  int
	AutoMigrate     bool
}

type MpesaConfig struct {
	Environment     string
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	ShortCode       string
	TransactionType string
	CallbackURL     string
	Timeout         time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// IntentConfig bounds how long a pending payment intent may wait for its callback.
type IntentConfig struct {
	TTL                time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
	MaxConflictRetries int
}

// EventsConfig picks the ledger event publisher: "none", "redis" or "kafka".
type EventsConfig struct {
	Driver  string
	Channel string
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "scan2pay-dev-secret"
)

func Load(logger *zap.Logger) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8027"),
			Env:            getEnv("ENVIRONMENT", EnvDevelopment),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout: getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DATABASE_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "scan2pay"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 50)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			ConnectRetries:  getEnvInt("DB_CONNECT_RETRIES", 5),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Mpesa: MpesaConfig{
			Environment:     getEnv("MPESA_ENVIRONMENT", "sandbox"),
			BaseURL:         getEnv("MPESA_BASE_URL", ""),
			ConsumerKey:     getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("MPESA_CONSUMER_SECRET", ""),
			Passkey:         getEnv("MPESA_PASSKEY", ""),
			ShortCode:       getEnv("MPESA_SHORT_CODE", ""),
			TransactionType: getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			CallbackURL:     getEnv("MPESA_CALLBACK_URL", "http://localhost:8027/api/v1/callbacks/mpesa/stk"),
			Timeout:         getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "ledger-events"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Intent: IntentConfig{
			TTL:                getEnvDuration("INTENT_TTL", 10*time.Minute),
			SweepInterval:      getEnvDuration("INTENT_SWEEP_INTERVAL", time.Minute),
			SweepBatchSize:     getEnvInt("INTENT_SWEEP_BATCH", 100),
			MaxConflictRetries: getEnvInt("CONFLICT_MAX_RETRIES", 5),
		},
		Events: EventsConfig{
			Driver:  getEnv("EVENTS_DRIVER", "none"),
			Channel: getEnv("EVENTS_CHANNEL", "ledger_events"),
		},
	}

	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = "https://sandbox.safaricom.co.ke"
		if cfg.Mpesa.Environment == EnvProduction {
			cfg.Mpesa.BaseURL = "https://api.safaricom.co.ke"
		}
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.Server.Env == EnvProduction {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		logger.Warn("JWT_SECRET not set, using development secret")
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ShortCode == "" {
		logger.Warn("M-Pesa credentials are incomplete, STK push requests will be rejected by the gateway",
			zap.String("environment", cfg.Mpesa.Environment))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Events.Driver {
	case "none", "redis", "kafka":
	default:
		return fmt.Errorf("unsupported EVENTS_DRIVER %q", c.Events.Driver)
	}
	if c.Events.Driver == "kafka" && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when EVENTS_DRIVER=kafka")
	}
	if c.Intent.TTL <= 0 {
		return errors.New("INTENT_TTL must be positive")
	}
	if c.Intent.SweepInterval <= 0 {
		return errors.New("INTENT_SWEEP_INTERVAL must be positive")
	}
	if c.Intent.MaxConflictRetries < 1 {
		return errors.New("CONFLICT_MAX_RETRIES must be at least 1")
	}
	if c.Mpesa.Timeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Server.Env == EnvDevelopment }

// DSN returns DATABASE_URL when set, otherwise a URL built from the DB_* parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
