package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/projection"
	"chat-sync/repositories"

	"github.com/google/uuid"
)

// rescanInterval bounds how long a scheduled message can stay hidden
// after its reveal time when no write touches the channel.
const rescanInterval = 5 * time.Second

// defaultFeedLimit caps a feed whose subscriber asked for no particular
// depth, keeping the underlying fetch bounded.
const defaultFeedLimit = 100

var _ contract.Worker = (*Synchronizer)(nil)

// Synchronizer keeps live feeds converged on the stored state. It listens
// to the repository change bus, coalesces bursts per channel and pushes a
// fresh full snapshot to every feed watching a dirty channel. A periodic
// rescan catches scheduled messages whose reveal time passes without any
// accompanying write.
type Synchronizer struct {
	channels repositories.IChannelRepository
	messages repositories.IMessageRepository
	bus      *repositories.ChangeBus
	registry contract.IRegistry
	now      func() time.Time
	log      *slog.Logger
}

func NewSynchronizer(
	channels repositories.IChannelRepository,
	messages repositories.IMessageRepository,
	bus *repositories.ChangeBus,
	registry contract.IRegistry,
	log *slog.Logger,
) *Synchronizer {
	return &Synchronizer{
		channels: channels,
		messages: messages,
		bus:      bus,
		registry: registry,
		now:      time.Now,
		log:      log,
	}
}

// WithClock swaps the time source, for tests exercising scheduling.
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

// Subscribe opens a live feed on a channel for a member. The first
// snapshot is pushed before returning, so the consumer renders without
// waiting for a change. The cancel func detaches and closes the feed.
func (s *Synchronizer) Subscribe(userID, channelID string, limit int) (*Feed, func(), error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return nil, nil, err
	}
	if !ch.HasMember(userID) {
		return nil, nil, errors.ErrNotChannelMember
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	feed := newFeed(uuid.NewString(), limit)
	snapshot, err := s.snapshot(channelID, limit)
	if err != nil {
		return nil, nil, err
	}
	feed.Push(snapshot)
	s.registry.Register(feed.ID(), channelID, feed)

	cancel := func() {
		s.registry.Unregister(feed.ID(), channelID)
		feed.close()
	}
	return feed, cancel, nil
}

// Run consumes the change bus until ctx ends. After each wake-up the
// pending changes are drained first, so a burst of writes to one channel
// costs a single refresh.
func (s *Synchronizer) Run(ctx context.Context) error {
	changes, cancel := s.bus.Subscribe(64)
	defer cancel()

	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	for {
		dirty := make(Set)
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			s.markDirty(dirty, c)
		drain:
			for {
				select {
				case c, ok := <-changes:
					if !ok {
						break drain
					}
					s.markDirty(dirty, c)
				default:
					break drain
				}
			}
		case <-ticker.C:
			// Scheduled reveals happen without a write.
			for _, channelID := range s.registry.Channels() {
				dirty[channelID] = struct{}{}
			}
		}

		for channelID := range dirty {
			s.refresh(channelID)
		}
	}
}

func (s *Synchronizer) markDirty(dirty Set, c event.Change) {
	if c.ChannelID == "" {
		return
	}
	switch {
	case c.Collection == event.Messages:
	case c.Collection == event.Channels && c.Kind == event.Deleted:
		// A cascade delete empties the history in one event.
	default:
		return
	}
	dirty[c.ChannelID] = struct{}{}
}

// refresh rebuilds the channel snapshot once and fans it out to every
// watching feed. A fetch failure terminates the feeds rather than leaving
// them silently frozen.
func (s *Synchronizer) refresh(channelID string) {
	sinks := s.registry.SinksForChannel(channelID)
	if len(sinks) == 0 {
		return
	}

	limit := 0
	for _, sink := range sinks {
		if l := sink.Limit(); l > limit {
			limit = l
		}
	}

	snapshot, err := s.snapshot(channelID, limit)
	if err != nil {
		s.log.Error("snapshot refresh failed",
			slog.String("channel_id", channelID), slog.String("error", err.Error()))
		for _, sink := range sinks {
			sink.Fail(err)
		}
		return
	}

	for _, sink := range sinks {
		sink.Push(tail(snapshot, sink.Limit()))
	}
}

func (s *Synchronizer) snapshot(channelID string, limit int) ([]domain.Message, error) {
	latest, err := s.messages.LatestMessages(channelID, limit)
	if err != nil {
		return nil, err
	}
	return projection.VisibleTimeline(latest, s.now().UTC()), nil
}

func tail(messages []domain.Message, limit int) []domain.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
