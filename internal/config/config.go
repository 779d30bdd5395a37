package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime configuration for the server.
type Config struct {
	Addr             string        `env:"CRICKET_ADDR" envDefault:":8080"`
	LogLevel         string        `env:"CRICKET_LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"CRICKET_LOG_FORMAT" envDefault:"json"`
	DBDriver         string        `env:"CRICKET_DB_DRIVER" envDefault:"none"`
	DatabaseURL      string        `env:"CRICKET_DATABASE_URL"`
	JWTSecret        string        `env:"CRICKET_JWT_SECRET"`
	QueueDepth       int           `env:"CRICKET_QUEUE_DEPTH" envDefault:"64"`
	SubscriberBuffer int           `env:"CRICKET_SUBSCRIBER_BUFFER" envDefault:"8"`
	PublishTimeout   time.Duration `env:"CRICKET_PUBLISH_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout  time.Duration `env:"CRICKET_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DefaultOvers     int           `env:"CRICKET_DEFAULT_OVERS" envDefault:"20"`
}

// Load reads optional dotenv files (".env" when none are given) and then the
// process environment. Values already in the environment win.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverNone:
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("CRICKET_DATABASE_URL is required for driver %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown CRICKET_DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("CRICKET_JWT_SECRET is required")
	}
	if c.QueueDepth <= 0 || c.SubscriberBuffer <= 0 || c.DefaultOvers <= 0 {
		return errors.New("queue depth, subscriber buffer and default overs must be positive")
	}
	return nil
}
