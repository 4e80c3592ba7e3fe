package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"3001"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	RoomIdleTTL   time.Duration `env:"ROOM_IDLE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	StrictTurns   bool          `env:"STRICT_TURNS" envDefault:"false"`

	OutboxSize   int           `env:"OUTBOX_SIZE" envDefault:"16"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`

	DatabaseURL      string `env:"DATABASE_URL"`
	ArchiveQueueSize int    `env:"ARCHIVE_QUEUE_SIZE" envDefault:"256"`
	StaticDir        string `env:"STATIC_DIR"`
}

func (c Config) Addr() string { return ":" + c.Port }

// Load reads an optional .env file and then the process environment.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.OutboxSize <= 0 {
		return fmt.Errorf("OUTBOX_SIZE must be positive, got %d", c.OutboxSize)
	}
	if c.RoomIdleTTL > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive when ROOM_IDLE_TTL is set")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
