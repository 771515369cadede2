package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	golobby "github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

const (
	DuplicatePolicyAllow  = "allow"
	DuplicatePolicyReject = "reject"

	DefaultPlaceholderTitle = "Unknown Title"
)

type Config struct {
	Crowdqueue CrowdqueueConfig
	Store      StoreConfig
	YouTube    YouTubeConfig
	Pushover   PushoverConfig
}

type CrowdqueueConfig struct {
	AllowedOrigins        string `env:"ALLOWED_ORIGINS"`
	BackgroundJobsEnabled bool   `env:"BACKGROUND_JOBS_ENABLED"`
	DuplicatePolicy       string `env:"DUPLICATE_POLICY"`
	LogLevel              string `env:"LOG_LEVEL"`
	ModerationToken       string `env:"MODERATION_TOKEN"`
	PlaceholderTitle      string `env:"PLACEHOLDER_TITLE"`
	PlayerSecret          string `env:"PLAYER_SECRET"`
	Port                  string `env:"PORT"`
	ResolveTimeoutSeconds int    `env:"RESOLVE_TIMEOUT_SECONDS"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER"`
	DSN    string `env:"STORE_DSN"`
}

type YouTubeConfig struct {
	Token string `env:"YOUTUBE_API_KEY"`
}

type PushoverConfig struct {
	Recipient string `env:"PUSHOVER_RECIPIENT"`
	Token     string `env:"PUSHOVER_TOKEN"`
}

// Default returns a configuration usable for local development with an
// on-disk sqlite queue.
func Default() Config {
	return Config{
		Crowdqueue: CrowdqueueConfig{
			AllowedOrigins:        "http://localhost:3000,http://localhost:8080",
			BackgroundJobsEnabled: true,
			DuplicatePolicy:       DuplicatePolicyAllow,
			LogLevel:              "info",
			PlaceholderTitle:      DefaultPlaceholderTitle,
			Port:                  "8080",
			ResolveTimeoutSeconds: 5,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "crowdqueue.db",
		},
	}
}

// Load layers an optional dotenv file and then the process environment over
// the defaults. An empty envFile skips the dotenv feeder.
func Load(envFile string) (Config, error) {
	cfg := Default()

	c := golobby.New()
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			c.AddFeeder(feeder.DotEnv{Path: envFile})
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}
	c.AddFeeder(feeder.Env{})
	c.AddStruct(&cfg)

	if err := c.Feed(); err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Crowdqueue.DuplicatePolicy {
	case DuplicatePolicyAllow, DuplicatePolicyReject:
	default:
		return fmt.Errorf("unknown duplicate policy %q", c.Crowdqueue.DuplicatePolicy)
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("STORE_DSN must be provided for the %s store", c.Store.Driver)
	}
	return nil
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.Crowdqueue.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}

func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.Crowdqueue.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *Config) GetResolveTimeout() time.Duration {
	if c.Crowdqueue.ResolveTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Crowdqueue.ResolveTimeoutSeconds) * time.Second
}

func (c *Config) GetPlaceholderTitle() string {
	if c.Crowdqueue.PlaceholderTitle == "" {
		return DefaultPlaceholderTitle
	}
	return c.Crowdqueue.PlaceholderTitle
}

func (c *Config) RejectDuplicates() bool {
	return c.Crowdqueue.DuplicatePolicy == DuplicatePolicyReject
}
