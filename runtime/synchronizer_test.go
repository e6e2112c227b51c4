package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

type syncFixture struct {
	channels *repositories.ChannelRepository
	messages *repositories.MessageRepository
	sync     *Synchronizer
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := repositories.NewChangeBus()
	channels := repositories.NewChannelRepository(db, bus)
	messages := repositories.NewMessageRepository(db, bus)
	synchronizer := NewSynchronizer(channels, messages, bus, NewRegistry(), testLogger())
	return &syncFixture{channels: channels, messages: messages, sync: synchronizer}
}

func (f *syncFixture) publicChannel(t *testing.T, members ...string) domain.Channel {
	t.Helper()
	ch := domain.Channel{
		ID:        uuid.NewString(),
		Name:      "general",
		Kind:      domain.ChannelPublic,
		CreatedBy: members[0],
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.channels.CreateChannel(ch))
	return ch
}

func (f *syncFixture) post(t *testing.T, channelID, userID, body string) domain.Message {
	t.Helper()
	m := domain.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.messages.StoreMessage(m))
	return m
}

func awaitSnapshot(t *testing.T, feed *Feed, accept func([]domain.Message) bool) []domain.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot, open := <-feed.C():
			require.True(t, open, "feed closed while waiting: %v", feed.Err())
			if accept(snapshot) {
				return snapshot
			}
		case <-deadline:
			t.Fatal("no matching snapshot arrived")
		}
	}
}

func TestSynchronizer_Subscribe_Pushes_Initial_Snapshot(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	alice := uuid.NewString()
	ch := f.publicChannel(t, alice)
	posted := f.post(t, ch.ID, alice, "already there")

	feed, cancel, err := f.sync.Subscribe(alice, ch.ID, 10)
	req.NoError(err)
	defer cancel()

	initial := <-feed.C()
	req.Len(initial, 1)
	req.Equal(posted.ID, initial[0].ID)
}

func TestSynchronizer_Subscribe_Defaults_Feed_Depth(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	alice := uuid.NewString()
	ch := f.publicChannel(t, alice)
	f.post(t, ch.ID, alice, "hello")

	// A non-positive limit falls back to the default depth
	feed, cancel, err := f.sync.Subscribe(alice, ch.ID, 0)
	req.NoError(err)
	defer cancel()

	req.Equal(defaultFeedLimit, feed.Limit())
	initial := <-feed.C()
	req.Len(initial, 1)
}

func TestSynchronizer_Subscribe_Gated_To_Members(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	alice := uuid.NewString()
	ch := f.publicChannel(t, alice)

	_, _, err := f.sync.Subscribe(uuid.NewString(), ch.ID, 10)
	req.ErrorIs(err, errors.ErrNotChannelMember)
}

func TestSynchronizer_New_Message_Reaches_Live_Feed(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	alice, bob := uuid.NewString(), uuid.NewString()
	ch := f.publicChannel(t, alice, bob)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.sync.Run(ctx)
	}()

	feed, cancel, err := f.sync.Subscribe(alice, ch.ID, 10)
	req.NoError(err)
	defer cancel()
	<-feed.C() // initial empty snapshot

	// When another member posts
	posted := f.post(t, ch.ID, bob, "hello alice")

	// Then the feed converges on a snapshot containing it
	snapshot := awaitSnapshot(t, feed, func(s []domain.Message) bool {
		return len(s) == 1
	})
	req.Equal(posted.ID, snapshot[0].ID)

	stop()
	wg.Wait()
}

func TestSynchronizer_Channel_Delete_Empties_Live_Feed(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	alice := uuid.NewString()
	ch := f.publicChannel(t, alice)
	f.post(t, ch.ID, alice, "soon gone")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.sync.Run(ctx)
	}()

	feed, cancel, err := f.sync.Subscribe(alice, ch.ID, 10)
	req.NoError(err)
	defer cancel()
	initial := <-feed.C()
	req.Len(initial, 1)

	// When the channel is deleted with its history
	req.NoError(f.channels.DeleteChannel(ch.ID))

	// Then the feed converges on an empty snapshot without waiting for a rescan
	awaitSnapshot(t, feed, func(s []domain.Message) bool {
		return len(s) == 0
	})

	stop()
	wg.Wait()
}

func TestSynchronizer_Scheduled_Message_Revealed_On_Refresh(t *testing.T) {
	req := require.New(t)
	f := newSyncFixture(t)
	alice := uuid.NewString()
	ch := f.publicChannel(t, alice)

	// Given a clock under test control
	now := time.Now().UTC()
	var mu sync.Mutex
	current := now
	f.sync.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	reveal := now.Add(time.Hour)
	scheduled := domain.Message{
		ID:           uuid.NewString(),
		ChannelID:    ch.ID,
		UserID:       alice,
		Body:         "from the future",
		CreatedAt:    now,
		ScheduledFor: &reveal,
	}
	req.NoError(f.messages.StoreMessage(scheduled))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.sync.Run(ctx)
	}()

	feed, cancel, err := f.sync.Subscribe(alice, ch.ID, 10)
	req.NoError(err)
	defer cancel()

	// The scheduled message is hidden from the first snapshot
	initial := <-feed.C()
	req.Empty(initial)

	// When the clock passes the reveal time and a write triggers a refresh
	mu.Lock()
	current = reveal.Add(time.Second)
	mu.Unlock()
	f.post(t, ch.ID, alice, "wake up")

	snapshot := awaitSnapshot(t, feed, func(s []domain.Message) bool {
		return len(s) == 2
	})
	req.Equal(scheduled.ID, snapshot[0].ID)

	stop()
	wg.Wait()
}
