package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 || cfg.GetAddr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Game.StartDelay != 3*time.Second || cfg.Game.InterRoundDelay != 5*time.Second {
		t.Fatalf("unexpected game timings %+v", cfg.Game)
	}
	if cfg.Game.StaleGameTimeout != 2*time.Hour {
		t.Fatalf("expected 2h stale timeout, got %s", cfg.Game.StaleGameTimeout)
	}
	if cfg.Catalog.Provider != ProviderSpotify || cfg.Catalog.Market != "US" {
		t.Fatalf("unexpected catalog config %+v", cfg.Catalog)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("default env should be development")
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_PLAYERS", "8")
	t.Setenv("INTER_ROUND_DELAY", "7s")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port from env, got %d", cfg.Server.Port)
	}
	if cfg.Game.MaxPlayers != 8 || cfg.Game.InterRoundDelay != 7*time.Second {
		t.Fatalf("unexpected game config %+v", cfg.Game)
	}
	if cfg.Catalog.SpotifyClientID != "id" || cfg.Events.NATSURL != "nats://localhost:4222" {
		t.Fatalf("unexpected collaborator config %+v %+v", cfg.Catalog, cfg.Events)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level should be lower-cased, got %q", cfg.Logging.Level)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := Load(newFlags(t, "--port", "7070", "--log-level", "warn"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("flag should win over env, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected warn, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songquiz.yaml")
	data := "catalog_provider: static\ncatalog_static_file: tracks.yaml\npool_size: 12\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(newFlags(t, "--config", path))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Catalog.Provider != ProviderStatic || cfg.Catalog.StaticFile != "tracks.yaml" {
		t.Fatalf("unexpected catalog config %+v", cfg.Catalog)
	}
	if cfg.Game.PoolSize != 12 {
		t.Fatalf("expected pool size 12, got %d", cfg.Game.PoolSize)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]struct {
		env  map[string]string
		want string
	}{
		"port":          {env: map[string]string{"PORT": "70000"}, want: "invalid port"},
		"provider":      {env: map[string]string{"CATALOG_PROVIDER": "deezer"}, want: "unknown catalog provider"},
		"static file":   {env: map[string]string{"CATALOG_PROVIDER": "static"}, want: "CATALOG_STATIC_FILE"},
		"fade out":      {env: map[string]string{"FADE_OUT_LEAD": "10s"}, want: "fade out lead"},
		"pool":          {env: map[string]string{"POOL_SIZE": "2"}, want: "pool size"},
		"log format":    {env: map[string]string{"LOG_FORMAT": "xml"}, want: "log format"},
		"negative wait": {env: map[string]string{"START_DELAY": "-1s"}, want: "start delay"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(newFlags(t))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
