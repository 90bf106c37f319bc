package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken   string   `env:"DISCORD_TOKEN,required,notEmpty"`
	CommandPrefix  string   `env:"COMMAND_PREFIX" envDefault:"-"`
	StoragePath    string   `env:"STORAGE_PATH" envDefault:"datastore.json"`
	GuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	Fetch   FetchConfig
	Resolve ResolveConfig
	Log     LogConfig

	StatusAddr string `env:"STATUS_ADDR"`
}

type FetchConfig struct {
	CacheDir     string        `env:"AUDIO_CACHE_DIR" envDefault:"cache"`
	FFmpegPath   string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	YTDLPPath    string        `env:"YTDLP_PATH"`
	MinRate      int64         `env:"FETCH_MIN_RATE" envDefault:"32768"`
	MinBytes     int64         `env:"FETCH_MIN_BYTES" envDefault:"262144"`
	Window       time.Duration `env:"FETCH_WINDOW" envDefault:"10s"`
	StallTimeout time.Duration `env:"FETCH_STALL_TIMEOUT" envDefault:"20s"`
	Retries      int           `env:"FETCH_RETRIES" envDefault:"1"`
}

type ResolveConfig struct {
	Proxy   string        `env:"YOUTUBE_PROXY"`
	Timeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"5s"`
}

type LogConfig struct {
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
}

// Load reads .env when present and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		log.Println("[INFO] No .env file found, falling back to system environment variables")
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative, got %d", c.Fetch.Retries)
	}
	if c.Fetch.MinRate < 0 || c.Fetch.MinBytes < 0 {
		return errors.New("FETCH_MIN_RATE and FETCH_MIN_BYTES must not be negative")
	}
	if c.CommandPrefix == "" {
		return errors.New("COMMAND_PREFIX must not be empty")
	}
	return nil
}
