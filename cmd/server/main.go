package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-sync/auth"
	"chat-sync/blobstore"
	"chat-sync/internal"
	"chat-sync/moderation"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/search"
	"chat-sync/services"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes give a meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the full graph and blocks until shutdown. Keeping everything
// out of main ensures defers fire before the process exits.
func run() (int, error) {
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	maskRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	db, err := repositories.Open(config.BadgerFilepath)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open search index: %w", err)
	}
	defer func() {
		logger.Info("Closing search index...")
		_ = index.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage layer
	bus := repositories.NewChangeBus()
	userRepository := repositories.NewUserRepository(db, bus)
	channelRepository := repositories.NewChannelRepository(db, bus)
	messageRepository := repositories.NewMessageRepository(db, bus)
	notificationRepository := repositories.NewNotificationRepository(db, bus)

	// Attachments
	var blobs blobstore.Uploader
	if config.S3Bucket != "" {
		blobs, err = blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:    config.S3Region,
			Bucket:    config.S3Bucket,
			AccessKey: config.S3AccessKey,
			SecretKey: config.S3SecretKey,
		})
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to build s3 store: %w", err)
		}
		logger.Info("Attachments stored on S3", "bucket", config.S3Bucket)
	} else {
		blobs = blobstore.NewFilesystemStore(config.FilesRoot)
		logger.Info("Attachments stored on filesystem", "root", config.FilesRoot)
	}

	moderator, err := moderation.NewModerator(config.BannedWordList(), maskRune, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("failed to build moderator: %w", err)
	}

	// Services
	signer := auth.NewTokenSigner(config.JWTSecret, config.TokenDuration)
	authService := services.NewAuthService(userRepository, signer, logger)
	membershipService := services.NewMembershipService(
		channelRepository, userRepository, messageRepository,
		notificationRepository, index, logger)
	messageService := services.NewMessageService(
		messageRepository, channelRepository, userRepository,
		index, &moderator, blobs, logger)
	notificationService := services.NewNotificationService(notificationRepository)
	engine := services.NewEngine(authService, membershipService, messageService, notificationService)

	// Startup probe: a failing store surfaces here instead of on the
	// first user operation.
	publicChannels, err := engine.Membership.ListPublicChannels()
	if err != nil {
		return exitRuntime, fmt.Errorf("storage probe failed: %w", err)
	}
	logger.Info("Service engine ready", "public_channels", len(publicChannels))

	// Live view machinery under supervision
	registry := runtime.NewRegistry()
	synchronizer := runtime.NewSynchronizer(
		channelRepository, messageRepository, bus, registry, logger)

	sup := workers.NewSupervisor(logger)
	sup.Add(
		synchronizer,
		workers.NewHealthWorker(logger, config.HealthInterval),
		workers.NewGCWorker(db, config.GCInterval, logger),
	)

	logger.Info("Starting chat-sync server")
	sup.Run(ctx)

	logger.Info("Shutdown complete")
	return exitOK, nil
}
