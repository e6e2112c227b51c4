// Package e2e exercises the full engine through its public services,
// wired exactly like the server binary but over throwaway storage.
package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-sync/auth"
	"chat-sync/blobstore"
	"chat-sync/moderation"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/search"
	"chat-sync/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config

	Engine       *services.Engine
	Synchronizer *runtime.Synchronizer

	stopSync context.CancelFunc
	db       *badger.DB
	index    *search.Index
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// SetupTest builds a fresh full stack per test so scenarios stay isolated.
func (s *BaseSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelError)

	dataDir := s.Config.DataDir
	if dataDir == "" {
		dataDir = s.T().TempDir()
	}
	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db

	index, err := search.OpenInMemory(log)
	s.Require().NoError(err)
	s.index = index

	moderator, err := moderation.NewModerator([]string{"heck"}, '*', log)
	s.Require().NoError(err)

	bus := repositories.NewChangeBus()
	users := repositories.NewUserRepository(db, bus)
	channels := repositories.NewChannelRepository(db, bus)
	messages := repositories.NewMessageRepository(db, bus)
	notifications := repositories.NewNotificationRepository(db, bus)

	signer := auth.NewTokenSigner("e2e-secret", time.Hour)
	blobs := blobstore.NewFilesystemStore(s.T().TempDir())

	s.Engine = services.NewEngine(
		services.NewAuthService(users, signer, log),
		services.NewMembershipService(channels, users, messages, notifications, index, log),
		services.NewMessageService(messages, channels, users, index, &moderator, blobs, log),
		services.NewNotificationService(notifications),
	)

	registry := runtime.NewRegistry()
	s.Synchronizer = runtime.NewSynchronizer(channels, messages, bus, registry, log)

	ctx, cancel := context.WithCancel(context.Background())
	s.stopSync = cancel
	go func() { _ = s.Synchronizer.Run(ctx) }()
}

func (s *BaseSuite) TearDownTest() {
	if s.stopSync != nil {
		s.stopSync()
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Step prints a colorized scenario header in the test log.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}
