package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Lock        LockConfig
	JWT         JWTConfig
	Outbox      OutboxConfig
	Broker      BrokerConfig
	Breaker     BreakerConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type LockConfig struct {
	Driver string
	TTL    time.Duration
	Wait   time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type OutboxConfig struct {
	Enabled        bool
	Path           string
	RetentionHours int
	SyncInterval   time.Duration
	BatchSize      int
	MaxRetry       int
}

type BrokerConfig struct {
	URL      string
	Exchange string
}

type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	Interval         time.Duration
	HalfOpenRequests int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "questlog"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Store: StoreConfig{
			Driver: getString("STORE_DRIVER", DriverPostgres),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "questlog"),
			User:            getString("DB_USER", "questlog"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		SQLite: SQLiteConfig{
			Path: getString("SQLITE_PATH", "./data/questlog.db"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Lock: LockConfig{
			Driver: getString("LOCK_DRIVER", LockLocal),
			TTL:    getDuration("LOCK_TTL", 10*time.Second),
			Wait:   getDuration("LOCK_WAIT", 3*time.Second),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "questlog"),
		},
		Outbox: OutboxConfig{
			Enabled:        getBool("OUTBOX_ENABLED", true),
			Path:           getString("BOLTDB_PATH", "./data/outbox.db"),
			RetentionHours: getInt("OUTBOX_RETENTION_HOURS", 72),
			SyncInterval:   getDuration("SYNC_INTERVAL_SECONDS", 15*time.Second),
			BatchSize:      getInt("OUTBOX_BATCH_SIZE", 50),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 5),
		},
		Broker: BrokerConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getString("AMQP_EXCHANGE", "questlog.progression"),
		},
		Breaker: BreakerConfig{
			Enabled:          getBool("BREAKER_ENABLED", true),
			FailureThreshold: getInt("BREAKER_FAILURE_THRESHOLD", 5),
			OpenTimeout:      getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
			Interval:         getDuration("BREAKER_INTERVAL", time.Minute),
			HalfOpenRequests: getInt("BREAKER_HALF_OPEN_REQUESTS", 1),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Lock.Driver {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.Lock.Driver)
	}
	if c.Outbox.Enabled && c.Outbox.Path == "" {
		return fmt.Errorf("BOLTDB_PATH is required when the outbox is enabled")
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
