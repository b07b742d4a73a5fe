package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rainrelay/internal/classifier"
	"rainrelay/internal/config"
	"rainrelay/internal/constants"
	"rainrelay/internal/dedup"
	"rainrelay/internal/models"
	"rainrelay/internal/service"
	"rainrelay/internal/store"
	"rainrelay/internal/tracing"
	"rainrelay/pkg/discord"
	"rainrelay/pkg/feed"
	"rainrelay/pkg/media"
	"rainrelay/pkg/telegram"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes message previews)")
	configPath = flag.String("config", "", "Path to an optional JSON configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rainrelay %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func newLogger(cfg *models.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - message previews will be logged")
		return logger
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg)
	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting rainrelay")

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()
	logger.WithField("backend", st.Backend()).Info("State store ready")

	sink, err := discord.NewSink(cfg.Discord.Token, cfg.Retry, logger)
	if err != nil {
		return fmt.Errorf("failed to create discord sink: %w", err)
	}
	defer sink.Close()

	templates, err := service.NewAlertTemplates(cfg.Monitor, cfg.Relay)
	if err != nil {
		return fmt.Errorf("invalid alert templates: %w", err)
	}
	deduper := dedup.New(st)
	ctxWithVerbose := service.WithVerbose(ctx, *verbose)

	var monitor *service.Monitor
	if config.MonitorEnabled(cfg) {
		provider := feed.NewChromeProvider(cfg.Feed, logger)
		defer provider.Close()

		c := classifier.New(classifier.Config{
			CodeWord:  cfg.Monitor.CodeWord,
			MinAmount: cfg.Monitor.MinAmount,
		}, classifier.NewFeedCursor(), logger)
		dispatcher := service.NewAlertDispatcher(cfg.Monitor, sink, deduper, templates, logger)
		monitor = service.NewMonitor(provider, c, dispatcher, cfg.Monitor, logger)

		if err := monitor.Start(ctxWithVerbose); err != nil {
			return fmt.Errorf("failed to start feed monitor: %w", err)
		}
		defer monitor.Stop()
	} else {
		logger.Warn("Skipping feed monitor: no alert channel configured (set BANDIT_CHANNEL_ID)")
	}

	var stager media.Stager
	relayCtx, stopRelay := context.WithCancel(ctxWithVerbose)
	defer stopRelay()
	relayDone := make(chan struct{})
	if config.RelayEnabled(cfg) {
		source, err := telegram.NewSource(cfg.Telegram.BotToken, cfg.Telegram.APIServer, logger)
		if err != nil {
			return fmt.Errorf("failed to create telegram source: %w", err)
		}
		stager, err = media.NewStager(cfg.Media, source)
		if err != nil {
			return fmt.Errorf("failed to create media stager: %w", err)
		}
		channels, err := service.NewChannelManager(cfg.Relay.Channels)
		if err != nil {
			return fmt.Errorf("failed to create channel manager: %w", err)
		}

		relay := service.NewRelayForwarder(cfg.Relay, channels, sink, stager, st, deduper, templates, logger)
		events, err := source.Events(relayCtx)
		if err != nil {
			return fmt.Errorf("failed to start telegram updates: %w", err)
		}
		go func() {
			defer close(relayDone)
			relay.Run(relayCtx, events)
		}()
	} else {
		close(relayDone)
		logger.Warn("Skipping relay: no telegram token or channel mapping configured")
	}

	scheduler := service.NewScheduler(st, stager, cfg.Store.RetentionHours, cfg.Store.CleanupIntervalMinutes, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	server := NewServer(cfg.Server.Port, st, monitor, config.RelayEnabled(cfg), logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		runErr = err
	}
	stopRelay()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	// The store and sink are closed by deferred calls, so the relay must be done first.
	awaitRelay(relayDone, shutdownCtx.Done(), logger)

	if runErr != nil {
		return runErr
	}
	logger.Info("Shutdown completed")
	return nil
}

// awaitRelay blocks until the relay has stopped. Missing the deadline is logged but
// does not end the wait; each lane has at most one event in flight and that event is
// bounded by its own timeout. Reports whether the relay stopped before the deadline.
func awaitRelay(relayDone, deadline <-chan struct{}, logger *logrus.Logger) bool {
	select {
	case <-relayDone:
		return true
	case <-deadline:
		logger.Warn("Relay did not drain before the shutdown deadline, waiting for in-flight events")
	}
	<-relayDone
	logger.Info("Relay drained")
	return false
}
