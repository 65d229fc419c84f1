package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Catalog provider names
const (
	ProviderSpotify = "spotify"
	ProviderStatic  = "static"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Catalog CatalogConfig
	Events  EventsConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port int
	Host string
	Env  string // "development" or "production"
}

// GameConfig holds game-related configuration
type GameConfig struct {
	MaxPlayers          int
	PoolSize            int
	StartDelay          time.Duration
	FinalRoundDelay     time.Duration
	InterRoundDelay     time.Duration
	FadeOutLead         time.Duration
	RecentResetInterval time.Duration
	StaleGameTimeout    time.Duration
}

// CatalogConfig selects and configures the music catalog
type CatalogConfig struct {
	Provider            string
	SpotifyClientID     string
	SpotifyClientSecret string
	Market              string
	StaticFile          string
	RequestTimeout      time.Duration
}

// EventsConfig configures lifecycle event publishing. An empty NATSURL
// disables it.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AddFlags registers the command line flags Load understands
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to a YAML or TOML config file")
	fs.IntP("port", "p", 8080, "port to listen on (env: PORT)")
	fs.String("host", "0.0.0.0", "address to bind to (env: HOST)")
	fs.String("log-level", "info", "log level: debug, info, warn or error (env: LOG_LEVEL)")
}

// Load reads configuration from an optional .env file, an optional config
// file, the environment and the given flags, in increasing precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for key, flag := range map[string]string{"port": "port", "host": "host", "log_level": "log-level"} {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("port"),
			Host: v.GetString("host"),
			Env:  v.GetString("env"),
		},
		Game: GameConfig{
			MaxPlayers:          v.GetInt("max_players"),
			PoolSize:            v.GetInt("pool_size"),
			StartDelay:          v.GetDuration("start_delay"),
			FinalRoundDelay:     v.GetDuration("final_round_delay"),
			InterRoundDelay:     v.GetDuration("inter_round_delay"),
			FadeOutLead:         v.GetDuration("fade_out_lead"),
			RecentResetInterval: v.GetDuration("recent_reset_interval"),
			StaleGameTimeout:    v.GetDuration("stale_game_timeout"),
		},
		Catalog: CatalogConfig{
			Provider:            strings.ToLower(v.GetString("catalog_provider")),
			SpotifyClientID:     v.GetString("spotify_client_id"),
			SpotifyClientSecret: v.GetString("spotify_client_secret"),
			Market:              v.GetString("spotify_market"),
			StaticFile:          v.GetString("catalog_static_file"),
			RequestTimeout:      v.GetDuration("catalog_timeout"),
		},
		Events: EventsConfig{
			NATSURL:       v.GetString("nats_url"),
			SubjectPrefix: v.GetString("nats_subject_prefix"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("env", "development")

	v.SetDefault("max_players", 20)
	v.SetDefault("pool_size", 50)
	v.SetDefault("start_delay", 3*time.Second)
	v.SetDefault("final_round_delay", time.Second)
	v.SetDefault("inter_round_delay", 5*time.Second)
	v.SetDefault("fade_out_lead", time.Second)
	v.SetDefault("recent_reset_interval", 30*time.Minute)
	v.SetDefault("stale_game_timeout", 2*time.Hour)

	v.SetDefault("catalog_provider", ProviderSpotify)
	v.SetDefault("spotify_client_id", "")
	v.SetDefault("spotify_client_secret", "")
	v.SetDefault("spotify_market", "US")
	v.SetDefault("catalog_static_file", "")
	v.SetDefault("catalog_timeout", 10*time.Second)

	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject_prefix", "songquiz")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Validate checks the loaded values for consistency
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Server.Port)
	}
	if c.Game.MaxPlayers < 1 {
		return fmt.Errorf("max players must be positive: %d", c.Game.MaxPlayers)
	}
	if c.Game.PoolSize < 4 {
		return fmt.Errorf("pool size must be at least 4: %d", c.Game.PoolSize)
	}
	for name, d := range map[string]time.Duration{
		"start delay":       c.Game.StartDelay,
		"final round delay": c.Game.FinalRoundDelay,
		"inter round delay": c.Game.InterRoundDelay,
		"fade out lead":     c.Game.FadeOutLead,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", name, d)
		}
	}
	if c.Game.FadeOutLead > c.Game.InterRoundDelay {
		return errors.New("fade out lead cannot exceed the inter round delay")
	}

	switch c.Catalog.Provider {
	case ProviderSpotify:
	case ProviderStatic:
		if c.Catalog.StaticFile == "" {
			return errors.New("CATALOG_STATIC_FILE is required for the static catalog")
		}
	default:
		return fmt.Errorf("unknown catalog provider %q", c.Catalog.Provider)
	}

	switch c.Logging.Format {
	case "json", "console", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
