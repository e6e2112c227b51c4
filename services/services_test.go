package services

import (
	"log/slog"
	"testing"
	"time"

	"chat-sync/auth"
	"chat-sync/blobstore"
	"chat-sync/domain"
	"chat-sync/moderation"
	"chat-sync/repositories"
	"chat-sync/search"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// fixture wires the full service graph over a throwaway store.
type fixture struct {
	users         *repositories.UserRepository
	channels      *repositories.ChannelRepository
	messages      *repositories.MessageRepository
	notifications *repositories.NotificationRepository
	index         *search.Index
	auth          *AuthService
	membership    *MembershipService
	message       *MessageService
	notification  *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	moderator, err := moderation.NewModerator([]string{"badword"}, '*', log)
	require.NoError(t, err)

	bus := repositories.NewChangeBus()
	f := &fixture{
		users:         repositories.NewUserRepository(db, bus),
		channels:      repositories.NewChannelRepository(db, bus),
		messages:      repositories.NewMessageRepository(db, bus),
		notifications: repositories.NewNotificationRepository(db, bus),
		index:         index,
	}
	signer := auth.NewTokenSigner("test-secret-key", time.Hour)
	f.auth = NewAuthService(f.users, signer, log)
	f.membership = NewMembershipService(f.channels, f.users, f.messages, f.notifications, index, log)
	f.message = NewMessageService(f.messages, f.channels, f.users, index, &moderator,
		blobstore.NewFilesystemStore(t.TempDir()), log)
	f.notification = NewNotificationService(f.notifications)
	return f
}

func (f *fixture) user(t *testing.T, plan domain.Plan) domain.User {
	t.Helper()
	u := domain.User{
		ID:          uuid.NewString(),
		Email:       uuid.NewString() + "@example.com",
		DisplayName: "Alice",
		Plan:        plan,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.users.CreateUser(u))
	return u
}

func (f *fixture) channel(t *testing.T, creatorID string) domain.Channel {
	t.Helper()
	ch, err := f.membership.CreateChannel(creatorID, "general")
	require.NoError(t, err)
	return ch
}

func (f *fixture) post(t *testing.T, channelID, userID, body string) domain.Message {
	t.Helper()
	m, err := f.message.PostMessage(PostMessageCommand{
		ChannelID: channelID,
		UserID:    userID,
		Body:      body,
	})
	require.NoError(t, err)
	return m
}
