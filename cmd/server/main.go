package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"songquiz/internal/app"
	"songquiz/internal/catalog"
	"songquiz/internal/config"
	"songquiz/internal/domain"
	"songquiz/internal/events"
	"songquiz/internal/selector"
	httpTransport "songquiz/internal/transport/http"
)

var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "songquiz",
		Short:         "Real-time multiplayer music quiz server.",
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	config.AddFlags(cmd.Flags())
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("songquiz {{.Version}}\n")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("catalog", cfg.Catalog.Provider).
		Msg("starting songquiz server")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	provider, err := newProvider(cfg.Catalog, clock, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	recent := selector.NewRecent(clock)
	if cfg.Game.RecentResetInterval > 0 {
		go recent.Run(ctx, cfg.Game.RecentResetInterval)
	}

	hubCfg := app.DefaultHubConfig()
	hubCfg.MaxPlayers = cfg.Game.MaxPlayers
	hubCfg.PoolSize = cfg.Game.PoolSize
	hubCfg.StaleGameTimeout = cfg.Game.StaleGameTimeout
	hubCfg.Timings = app.Timings{
		StartDelay:      cfg.Game.StartDelay,
		FinalRoundDelay: cfg.Game.FinalRoundDelay,
		InterRoundDelay: cfg.Game.InterRoundDelay,
		FadeOutLead:     cfg.Game.FadeOutLead,
	}

	hub := app.NewGameHub(hubCfg, app.Dependencies{
		Provider:  provider,
		Selector:  selector.New(recent),
		Publisher: publisher,
		Clock:     clock,
	}, logger)
	defer hub.Close()

	server := httpTransport.NewServer(cfg, hub, logger)

	errs := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// setupLogger configures the global logger and returns it for injection
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return log.Logger
}

func newProvider(cfg config.CatalogConfig, clock clockwork.Clock, logger zerolog.Logger) (catalog.Provider, error) {
	if cfg.Provider == config.ProviderStatic {
		static, err := catalog.LoadStatic(cfg.StaticFile)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("file", cfg.StaticFile).Msg("using static catalog")
		return static, nil
	}

	curated, err := catalog.LoadCurated()
	if err != nil {
		return nil, err
	}

	var tokens catalog.TokenSource
	creds, err := catalog.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret, "", &http.Client{Timeout: cfg.RequestTimeout})
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		// games will end with a catalog error when they reach round 1
		logger.Warn().Msg("SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET not set")
		tokens = catalog.NoCredentials{}
	case err != nil:
		return nil, err
	default:
		tokens = creds
	}

	return catalog.NewSpotify(tokens, curated, catalog.SpotifyOptions{
		Market:     cfg.Market,
		Timeout:    cfg.RequestTimeout,
		QueryPause: 100 * time.Millisecond,
		Clock:      clock,
		Logger:     logger,
	}), nil
}

func newPublisher(cfg config.EventsConfig, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.Nop{}, nil
	}

	publisher, err := events.NewNATSPublisher(events.DefaultNATSConfig(cfg.NATSURL, cfg.SubjectPrefix))
	if err != nil {
		return nil, err
	}
	logger.Info().Str("url", cfg.NATSURL).Msg("publishing lifecycle events to NATS")
	return publisher, nil
}
