// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/voicebox/internal/api/connect"
	"github.com/osa030/voicebox/internal/app/filter"
	"github.com/osa030/voicebox/internal/app/resolver"
	"github.com/osa030/voicebox/internal/app/search"
	"github.com/osa030/voicebox/internal/app/session"
	"github.com/osa030/voicebox/internal/infra/config"
	"github.com/osa030/voicebox/internal/infra/discordbot"
	"github.com/osa030/voicebox/internal/infra/lastfm"
	"github.com/osa030/voicebox/internal/infra/logger"
	"github.com/osa030/voicebox/internal/infra/media"
	"github.com/osa030/voicebox/internal/infra/spotify"
)

const shutdownTimeout = 10 * time.Second

var (
	app        = kingpin.New("voicebox-server", "voicebox Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	extractor := media.NewExtractor(media.Config{
		Path:        cfg.Resolver.YtDlp.Path,
		Format:      cfg.Resolver.YtDlp.Format,
		CookiesFile: cfg.Resolver.YtDlp.CookiesFile,
		Proxy:       cfg.Resolver.YtDlp.Proxy,
	})

	chain, err := search.NewProviderChainFromConfig(cfg.Resolver.Providers, extractor)
	if err != nil {
		return errors.Wrap(err, "failed to create search providers")
	}
	zlog.Info().Msgf("Search providers: %s", chain.Name())

	var rewriter resolver.LinkRewriter
	if cfg.Spotify.Enabled() {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		rewriter = spotifyClient
		zlog.Info().Msg("Spotify links enabled")
	}

	var similar discordbot.SimilarFinder
	if cfg.LastFM.Enabled() && cfg.LastFM.SimilarCount > 0 {
		lastfmClient, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey})
		if err != nil {
			return errors.Wrap(err, "failed to create Last.fm client")
		}
		similar = lastfmClient
		zlog.Info().Msg("Last.fm similar tracks enabled")
	}

	bot, err := discordbot.New(cfg, similar)
	if err != nil {
		return err
	}

	sessionMgr, err := session.NewManager(cfg, session.Deps{
		Resolver:  resolver.New(chain, extractor, rewriter),
		Connector: bot.Connector(),
		Publisher: bot.Presenter(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	defer sessionMgr.Close()

	bot.SetManager(sessionMgr)
	sessionMgr.GetNotificationManager().Subscribe(bot.Presenter(), "")

	// Create RPC services
	listenerService := apiconnect.NewListenerService(sessionMgr, cfg)
	adminService := apiconnect.NewAdminService(sessionMgr, cfg)

	mux := http.NewServeMux()
	listenerPath, listenerHandler := apiconnect.NewListenerServiceHandler(listenerService)
	adminPath, adminHandler := apiconnect.NewAdminServiceHandler(
		adminService,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg)),
	)
	mux.Handle(listenerPath, listenerHandler)
	mux.Handle(adminPath, adminHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	if err := bot.Open(ctx); err != nil {
		_ = server.Close()
		return errors.Wrap(err, "failed to connect to Discord")
	}
	zlog.Info().Msg("Connected to Discord")

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received shutdown signal: %s", sig)
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop sessions first so they leave voice while the gateway is still up
	sessionMgr.Close()
	bot.Close(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()

	fmt.Println("Available Filters:")
	for _, name := range filter.Names() {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
