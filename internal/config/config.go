// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration of the seat server.
type Config struct {
	App       App
	DB        DB
	JWT       JWT
	Redis     Redis
	RabbitMQ  RabbitMQ
	RateLimit RateLimit
	Cache     Cache
	Hold      Hold
	Broadcast Broadcast
	Catalog   Catalog
	Upload    Upload
	Log       Log
}

type App struct {
	Env  string `env:"APP_ENV" env-default:"dev"`
	Port string `env:"APP_PORT" env-default:"8080"`
}

// IsProduction reports whether the server runs with APP_ENV=prod.
func (a App) IsProduction() bool {
	return strings.EqualFold(a.Env, "prod") || strings.EqualFold(a.Env, "production")
}

// DB configures MySQL.  An empty Host runs the server memory-only.
type DB struct {
	User          string        `env:"DB_USER" env-default:"root"`
	Pass          string        `env:"DB_PASS"`
	Host          string        `env:"DB_HOST"`
	Port          string        `env:"DB_PORT" env-default:"3306"`
	Name          string        `env:"DB_NAME" env-default:"bus_booking"`
	MaxConns      int           `env:"DB_MAX_CONNS" env-default:"25"`
	FlushInterval time.Duration `env:"DB_FLUSH_INTERVAL" env-default:"1s"`
}

// Enabled reports whether a database is configured.
func (d DB) Enabled() bool { return d.Host != "" }

type JWT struct {
	Secret     string        `env:"JWT_SECRET" env-default:"dev-secret"`
	SessionTTL time.Duration `env:"SESSION_TTL" env-default:"2h"`
	BcryptCost int           `env:"BCRYPT_COST" env-default:"10"`
}

type RabbitMQ struct {
	URL     string `env:"RABBITMQ_URL"`
	Queue   string `env:"BOOKING_QUEUE" env-default:"booking.confirmed"`
	LogFile string `env:"BOOKING_LOG" env-default:"logs/booking.log"`
}

// Hold configures server-side seat hold expiry.
type Hold struct {
	TTL           time.Duration `env:"HOLD_TTL" env-default:"5m"`
	SweepInterval time.Duration `env:"HOLD_SWEEP_INTERVAL" env-default:"60s"`
}

type Broadcast struct {
	Interval    time.Duration `env:"BROADCAST_INTERVAL" env-default:"2s"`
	MaxTrips    int           `env:"BROADCAST_MAX_TRIPS" env-default:"50"`
	WatchWindow time.Duration `env:"BROADCAST_WATCH_WINDOW" env-default:"10m"`
	Channel     string        `env:"BROADCAST_CHANNEL" env-default:"seats:updates"`
}

type Catalog struct {
	File string `env:"CATALOG_FILE" env-default:"data/catalog.yaml"`
}

type Upload struct {
	Dir          string   `env:"UPLOAD_DIR" env-default:"uploads"`
	MaxBytes     int64    `env:"UPLOAD_MAX_BYTES" env-default:"5242880"`
	AllowedTypes []string `env:"UPLOAD_ALLOWED_TYPES" env-separator:"," env-default:"image/jpeg,image/png,application/pdf"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

const devSecret = "dev-secret"

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	cfg.RateLimit = cfg.RateLimit.normalize()
	if cfg.JWT.Secret == "" || cfg.JWT.Secret == devSecret {
		if cfg.App.IsProduction() {
			return nil, errors.New("config error: JWT_SECRET must be set in production")
		}
		cfg.JWT.Secret = devSecret
	}
	if cfg.JWT.BcryptCost < 4 {
		cfg.JWT.BcryptCost = 10
	}
	if cfg.Broadcast.MaxTrips < 1 {
		cfg.Broadcast.MaxTrips = 50
	}
	return cfg, nil
}

// Client configures the terminal client.
type Client struct {
	ServerURL string        `env:"BUS_SERVER_URL" env-default:"http://localhost:8080"`
	RedisAddr string        `env:"REDIS_ADDR"`
	Channel   string        `env:"BROADCAST_CHANNEL" env-default:"seats:updates"`
	PollEvery time.Duration `env:"SEAT_POLL_INTERVAL" env-default:"3s"`
	LogFile   string        `env:"BUSCLIENT_LOG" env-default:"busclient.log"`
	LogLevel  string        `env:"LOG_LEVEL" env-default:"info"`
}

// LoadClient reads the terminal client's configuration.
func LoadClient() (*Client, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Client{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory; a missing file is
// not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
