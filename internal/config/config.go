package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type LogConfig struct {
	Level     string `env:"LOG_LEVEL" envDefault:"info"`
	Format    string `env:"LOG_FORMAT" envDefault:"legacy"`
	ToConsole bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile    bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File      string `env:"LOG_FILE" envDefault:"logs/duel-arena.log"`
	Caller    bool   `env:"LOG_CALLER" envDefault:"false"`
}

type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	WSAddr   string `env:"WS_ADDR" envDefault:":8081"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	RosterFile  string `env:"ROSTER_FILE"`
	MessagesDir string `env:"MESSAGES_DIR"`

	StartingHealth int     `env:"STARTING_HEALTH" envDefault:"100"`
	MoveCap        int     `env:"MOVE_CAP" envDefault:"50"`
	BaseMiss       float64 `env:"BASE_MISS" envDefault:"10"`
	BaseCritical   float64 `env:"BASE_CRITICAL" envDefault:"10"`
	MaxSkills      int     `env:"MAX_SKILLS" envDefault:"12"`

	AutoMatch           bool          `env:"AUTO_MATCH" envDefault:"true"`
	MatchmakeInterval   time.Duration `env:"MATCHMAKE_INTERVAL" envDefault:"2s"`
	PreferUnplayed      bool          `env:"PREFER_UNPLAYED" envDefault:"false"`
	ForfeitOnDisconnect bool          `env:"FORFEIT_ON_DISCONNECT" envDefault:"false"`
	SnapshotTTL         time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`

	Log LogConfig
}

// Load reads an optional .env file and then the process environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finalize(&cfg)
}

// LoadFrom parses an explicit environment instead of the process one.
func LoadFrom(vars map[string]string) (*AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finalize(&cfg)
}

func finalize(cfg *AppConfig) (*AppConfig, error) {
	cfg.HTTPAddr = strings.TrimSpace(cfg.HTTPAddr)
	cfg.WSAddr = strings.TrimSpace(cfg.WSAddr)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RosterFile = strings.TrimSpace(cfg.RosterFile)
	cfg.MessagesDir = strings.TrimSpace(cfg.MessagesDir)
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if cfg.HTTPAddr == "" {
		return nil, errors.New("HTTP_ADDR is required")
	}
	if cfg.StartingHealth <= 0 {
		return nil, errors.New("STARTING_HEALTH must be positive")
	}
	if cfg.MoveCap < 0 {
		return nil, errors.New("MOVE_CAP must not be negative")
	}
	if cfg.MaxSkills <= 0 {
		return nil, errors.New("MAX_SKILLS must be positive")
	}
	if cfg.BaseMiss < 0 || cfg.BaseMiss >= 100 {
		return nil, errors.New("BASE_MISS must be within [0,100)")
	}
	if cfg.BaseCritical < 0 || cfg.BaseCritical >= 100 {
		return nil, errors.New("BASE_CRITICAL must be within [0,100)")
	}
	if cfg.MatchmakeInterval <= 0 {
		return nil, errors.New("MATCHMAKE_INTERVAL must be positive")
	}
	if cfg.DatabaseURL == "" && cfg.RosterFile == "" {
		return nil, errors.New("DATABASE_URL or ROSTER_FILE is required")
	}
	return cfg, nil
}
