package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/keshon/discodrome/internal/subsonic"
)

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN"`
	InitSlashCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	SubsonicServer    string        `env:"SUBSONIC_SERVER,required,notEmpty"`
	SubsonicUser      string        `env:"SUBSONIC_USER"`
	SubsonicPassword  string        `env:"SUBSONIC_PASSWORD"`
	SubsonicTokenAuth bool          `env:"SUBSONIC_TOKEN_AUTH" envDefault:"false"`
	SubsonicVersion   string        `env:"SUBSONIC_API_VERSION" envDefault:"1.15.0"`
	SubsonicClient    string        `env:"SUBSONIC_CLIENT" envDefault:"discodrome"`
	SubsonicTimeout   time.Duration `env:"SUBSONIC_TIMEOUT" envDefault:"20s"`
	SubsonicRPS       float64       `env:"SUBSONIC_RPS" envDefault:"10"`

	CacheDir      string `env:"CACHE_DIR" envDefault:"cache"`
	CoverFallback string `env:"COVER_FALLBACK" envDefault:"resources/cover_not_found.jpg"`
	CoverSize     int    `env:"COVER_SIZE" envDefault:"300"`

	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT" envDefault:"10s"`
	AutoplaySimilarCount int           `env:"AUTOPLAY_SIMILAR_COUNT" envDefault:"1"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// New reads the configuration from the environment (and .env, if present).
func New() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if !strings.HasPrefix(c.SubsonicServer, "http://") && !strings.HasPrefix(c.SubsonicServer, "https://") {
		errs = append(errs, fmt.Errorf("SUBSONIC_SERVER must be an http(s) URL, got %q", c.SubsonicServer))
	}
	if c.SubsonicTimeout <= 0 {
		errs = append(errs, errors.New("SUBSONIC_TIMEOUT must be positive"))
	}
	if c.SubsonicRPS <= 0 {
		errs = append(errs, errors.New("SUBSONIC_RPS must be positive"))
	}
	if c.CoverSize <= 0 {
		errs = append(errs, errors.New("COVER_SIZE must be positive"))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("IDLE_TIMEOUT must be positive"))
	}
	if c.AutoplaySimilarCount <= 0 {
		errs = append(errs, errors.New("AUTOPLAY_SIMILAR_COUNT must be positive"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// RequireDiscord checks the settings only the bot needs.
func (c *Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}

// Level is the parsed LOG_LEVEL.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Subsonic is the client configuration derived from the environment.
func (c *Config) Subsonic() subsonic.Config {
	return subsonic.Config{
		BaseURL:           c.SubsonicServer,
		User:              c.SubsonicUser,
		Password:          c.SubsonicPassword,
		Version:           c.SubsonicVersion,
		ClientName:        c.SubsonicClient,
		TokenAuth:         c.SubsonicTokenAuth,
		Timeout:           c.SubsonicTimeout,
		RequestsPerSecond: c.SubsonicRPS,
		CacheDir:          c.CacheDir,
		FallbackCover:     c.CoverFallback,
	}
}
