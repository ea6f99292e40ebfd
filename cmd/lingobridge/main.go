package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingobridge/internal/audit"
	"lingobridge/internal/config"
	"lingobridge/internal/constants"
	"lingobridge/internal/models"
	"lingobridge/internal/retry"
	"lingobridge/internal/service"
	"lingobridge/internal/tracing"
	"lingobridge/pkg/avatar"
	"lingobridge/pkg/chat"
	"lingobridge/pkg/translation"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("LingoBridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting LingoBridge")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(cfg, logger)

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// The audit store opens a sqlite file on shared storage; retry the
	// open in case the volume is slow to attach.
	var auditStore *audit.Store
	backoff := retry.NewBackoff(retry.DefaultPolicy())
	err = backoff.Retry(ctx, func() error {
		var initErr error
		auditStore, initErr = audit.New(cfg.Audit.Path)
		if initErr != nil {
			logger.Warnf("Failed to open audit store: %v", initErr)
		}
		return initErr
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to open audit store after retries: %w", err)
	}
	defer auditStore.Close()

	botToken := os.Getenv("LINGOBRIDGE_BOT_TOKEN")
	if botToken == "" {
		return fmt.Errorf("LINGOBRIDGE_BOT_TOKEN environment variable is required")
	}

	platformTimeout := time.Duration(cfg.Platform.TimeoutSec) * time.Second
	if platformTimeout <= 0 {
		platformTimeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	chatClient := chat.NewHTTPClient(cfg.Platform.APIBaseURL, botToken, platformTimeout)

	snapshot, err := config.LoadGroups(cfg.GroupsPath)
	if err != nil {
		return fmt.Errorf("failed to load group configuration: %w", err)
	}
	resolver := service.NewGroupResolver(snapshot)
	logger.WithField("servers", len(snapshot)).Info("Group configuration loaded")

	avatarHandler, err := avatar.NewHandler(cfg.Avatar.CacheDir, cfg.Avatar.MaxSizeMB)
	if err != nil {
		return fmt.Errorf("failed to initialize avatar cache: %w", err)
	}

	identity := service.NewIdentityProjector(
		avatarHandler,
		time.Duration(cfg.Avatar.ReleaseGraceMs)*time.Millisecond,
		logger,
	)

	emojiBridge := service.NewEmojiBridge(
		chatClient,
		time.Duration(cfg.Emoji.CleanupDelaySec)*time.Second,
		logger,
	)

	queues := service.NewDeliveryQueueSet(chatClient, emojiBridge, identity, logger)

	primary := translation.NewContextClient(
		cfg.Translator.Primary.BaseURL,
		os.Getenv("LINGOBRIDGE_TRANSLATOR_API_KEY"),
		cfg.Translator.Primary.Model,
		time.Duration(cfg.Translator.Primary.TimeoutSec)*time.Second,
	)
	secondary := translation.NewPlainClient(
		cfg.Translator.Secondary.BaseURL,
		os.Getenv("LINGOBRIDGE_MT_API_KEY"),
		time.Duration(cfg.Translator.Secondary.TimeoutSec)*time.Second,
	)

	orchestrator := service.NewTranslationOrchestrator(primary, secondary, auditStore, service.TranslatorConfig{
		MaxAttempts:    cfg.Translator.Primary.MaxAttempts,
		AttemptTimeout: time.Duration(cfg.Translator.Primary.TimeoutSec) * time.Second,
		MinInterval:    time.Duration(cfg.Translator.Primary.MinIntervalMs) * time.Millisecond,
	}, logger)
	orchestrator.Start(ctx)

	coordinator := service.NewSyncCoordinator(
		resolver,
		orchestrator,
		identity,
		queues,
		chatClient,
		cfg.Platform.BotUserID,
		cfg.Translator.Primary.ContextMessages,
		logger,
	)

	scheduler := service.NewScheduler(auditStore, avatarHandler, cfg.Audit.RetentionDays, constants.CleanupSchedulerIntervalHours, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Platform.GatewayURL != "" {
		gateway := chat.NewGateway(
			cfg.Platform.GatewayURL,
			botToken,
			constants.DefaultGatewayReconnectSec*time.Second,
			coordinator.HandleMessage,
			logger,
		)
		gateway.Start(ctx)
		defer gateway.Stop()
		logger.WithField("url", cfg.Platform.GatewayURL).Info("Gateway event stream started")
	} else {
		logger.Info("No gateway URL configured, relying on webhook events only")
	}

	server := NewServer(coordinator, resolver, cfg.GroupsPath, cfg.Platform.WebhookSecret, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	// Temporary emojis and unreferenced avatars must not outlive the
	// process.
	emojiBridge.CleanupAll(shutdownCtx)
	identity.Shutdown()

	logger.Info("Server shutdown completed")
	return nil
}

func configureLogLevel(cfg *models.Config, logger *logrus.Logger) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	if cfg.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	logger.SetLevel(level)
}
