package repositories

import (
	"testing"
	"time"

	"chat-sync/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testUser(email string) domain.User {
	return domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  "Alice",
		PasswordHash: "$argon2id$fake",
		Plan:         domain.PlanFree,
		UploadLimit:  50 << 20,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testChannel(creatorID string) domain.Channel {
	return domain.Channel{
		ID:        uuid.NewString(),
		Name:      "general",
		Kind:      domain.ChannelPublic,
		CreatedBy: creatorID,
		Members:   []string{creatorID},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testMessage(channelID, userID string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		UserID:    userID,
		UserName:  "Alice",
		Body:      "this message will self destruct in 5 seconds",
		CreatedAt: at,
	}
}
