//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"chat-sync/blobstore"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/moderation"
	"chat-sync/plan"
	"chat-sync/projection"
	"chat-sync/repositories"
	"chat-sync/search"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

const defaultTimelineLimit = 100

type IMessageService interface {
	PostMessage(cmd PostMessageCommand) (domain.Message, error)
	EditMessage(userID, messageID, body string) (domain.Message, error)
	DeleteMessage(userID, messageID string) error
	ToggleReaction(userID, messageID, emoji string) (domain.Message, error)
	ToggleStar(userID, messageID string) (domain.Message, error)
	Timeline(userID, channelID string, limit int) ([]domain.Message, error)
	SearchMessages(ctx context.Context, userID, channelID, query string, page int) ([]domain.Message, uint64, error)
	StarredMessages(userID string) ([]domain.Message, error)
	ChannelFiles(userID, channelID string) ([]domain.Message, error)
	UploadAttachment(ctx context.Context, cmd UploadCommand) (domain.Attachment, error)
}

type PostMessageCommand struct {
	ChannelID    string
	UserID       string
	Body         string
	Attachment   *domain.Attachment
	ScheduledFor *time.Time
}

type UploadCommand struct {
	UserID   string
	Name     string
	Size     int64
	Reader   io.Reader
	Progress blobstore.Progress
}

type MessageService struct {
	messages repositories.IMessageRepository
	channels repositories.IChannelRepository
	users    repositories.IUserRepository
	index    *search.Index
	mod      *moderation.Moderator
	blobs    blobstore.Uploader
	now      func() time.Time
	log      *slog.Logger
}

func NewMessageService(
	messages repositories.IMessageRepository,
	channels repositories.IChannelRepository,
	users repositories.IUserRepository,
	index *search.Index,
	mod *moderation.Moderator,
	blobs blobstore.Uploader,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messages: messages,
		channels: channels,
		users:    users,
		index:    index,
		mod:      mod,
		blobs:    blobs,
		now:      time.Now,
		log:      log,
	}
}

// WithClock swaps the time source, for tests exercising scheduling.
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.now = now
	return s
}

// PostMessage stores a new message after the membership gate, moderation
// pass and schedule check. A message needs a body or an attachment; an
// attachment alone is a valid file share.
func (s *MessageService) PostMessage(cmd PostMessageCommand) (domain.Message, error) {
	body := strings.TrimSpace(cmd.Body)
	if body == "" && cmd.Attachment == nil {
		return domain.Message{}, errors.ErrEmptyBody
	}

	ch, err := s.channels.GetChannel(cmd.ChannelID)
	if err != nil {
		return domain.Message{}, err
	}
	if !ch.HasMember(cmd.UserID) {
		return domain.Message{}, errors.ErrNotChannelMember
	}

	user, err := s.users.GetUser(cmd.UserID)
	if err != nil {
		return domain.Message{}, err
	}
	if cmd.Attachment != nil {
		if err := plan.CheckUpload(user.Plan, cmd.Attachment.Size); err != nil {
			return domain.Message{}, err
		}
	}

	now := s.now().UTC()
	if cmd.ScheduledFor != nil && !cmd.ScheduledFor.After(now) {
		return domain.Message{}, errors.ErrScheduleInPast
	}

	m := domain.Message{
		ID:           uuid.NewString(),
		ChannelID:    cmd.ChannelID,
		UserID:       cmd.UserID,
		UserName:     user.DisplayName,
		Body:         s.mod.Mask(body),
		Lang:         detectLang(body),
		CreatedAt:    now,
		Attachment:   cmd.Attachment,
		ScheduledFor: normalizeSchedule(cmd.ScheduledFor),
	}
	if err := s.messages.StoreMessage(m); err != nil {
		return domain.Message{}, err
	}
	if err := s.index.IndexMessage(m); err != nil {
		s.log.Warn("failed to index message",
			slog.String("message_id", m.ID), slog.String("error", err.Error()))
	}
	return m, nil
}

// EditMessage rewrites the body, runs it through moderation again and
// stamps the edit time. Author only; a body that trims to nothing is
// rejected before any write.
func (s *MessageService) EditMessage(userID, messageID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, errors.ErrEmptyBody
	}
	if err := s.requireAuthor(userID, messageID); err != nil {
		return domain.Message{}, err
	}

	updated, err := s.messages.UpdateBody(messageID, s.mod.Mask(body), s.now().UTC())
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.index.IndexMessage(updated); err != nil {
		s.log.Warn("failed to reindex message",
			slog.String("message_id", messageID), slog.String("error", err.Error()))
	}
	return updated, nil
}

// DeleteMessage removes the message and its index entry. Author only.
func (s *MessageService) DeleteMessage(userID, messageID string) error {
	if err := s.requireAuthor(userID, messageID); err != nil {
		return err
	}
	if err := s.messages.DeleteMessage(messageID); err != nil {
		return err
	}
	if err := s.index.DeindexMessage(messageID); err != nil {
		s.log.Warn("failed to deindex message",
			slog.String("message_id", messageID), slog.String("error", err.Error()))
	}
	return nil
}

// ToggleReaction flips the caller's reaction. Any channel member may
// react, not only the author.
func (s *MessageService) ToggleReaction(userID, messageID, emoji string) (domain.Message, error) {
	if err := s.requireMember(userID, messageID); err != nil {
		return domain.Message{}, err
	}
	return s.messages.ToggleReaction(messageID, userID, emoji)
}

func (s *MessageService) ToggleStar(userID, messageID string) (domain.Message, error) {
	if err := s.requireMember(userID, messageID); err != nil {
		return domain.Message{}, err
	}
	return s.messages.ToggleStar(messageID, userID)
}

// Timeline returns the channel's recent messages in display order, with
// still-scheduled ones held back. Members only.
func (s *MessageService) Timeline(userID, channelID string, limit int) ([]domain.Message, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	if !ch.HasMember(userID) {
		return nil, errors.ErrNotChannelMember
	}
	if limit <= 0 {
		limit = defaultTimelineLimit
	}

	latest, err := s.messages.LatestMessages(channelID, limit)
	if err != nil {
		return nil, err
	}
	return projection.VisibleTimeline(latest, s.now().UTC()), nil
}

// SearchMessages resolves index hits back to stored records. Hits whose
// record vanished between indexing and lookup are skipped; scheduled
// messages stay hidden from search too.
func (s *MessageService) SearchMessages(ctx context.Context, userID, channelID, query string, page int) ([]domain.Message, uint64, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return nil, 0, err
	}
	if !ch.HasMember(userID) {
		return nil, 0, errors.ErrNotChannelMember
	}

	ids, total, err := s.index.SearchPaginated(ctx, query, channelID, page)
	if err != nil {
		return nil, 0, err
	}

	now := s.now().UTC()
	out := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		m, err := s.messages.GetMessage(id)
		if err != nil {
			if stderrors.Is(err, errors.ErrMessageNotFound) {
				continue
			}
			return nil, 0, err
		}
		if m.VisibleAt(now) {
			out = append(out, m)
		}
	}
	return out, total, nil
}

func (s *MessageService) StarredMessages(userID string) ([]domain.Message, error) {
	return s.messages.StarredMessages(userID)
}

// ChannelFiles lists the attachment-bearing messages of a channel, the
// backing view for a shared-files panel.
func (s *MessageService) ChannelFiles(userID, channelID string) ([]domain.Message, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	if !ch.HasMember(userID) {
		return nil, errors.ErrNotChannelMember
	}
	return s.messages.AttachmentMessages(channelID)
}

// UploadAttachment checks the declared size against the user's plan
// before any bytes move, then streams into the blob store.
func (s *MessageService) UploadAttachment(ctx context.Context, cmd UploadCommand) (domain.Attachment, error) {
	user, err := s.users.GetUser(cmd.UserID)
	if err != nil {
		return domain.Attachment{}, err
	}
	if err := plan.CheckUpload(user.Plan, cmd.Size); err != nil {
		return domain.Attachment{}, err
	}
	return s.blobs.Upload(ctx, cmd.UserID, cmd.Name, cmd.Size, cmd.Reader, cmd.Progress)
}

func (s *MessageService) requireAuthor(userID, messageID string) error {
	m, err := s.messages.GetMessage(messageID)
	if err != nil {
		return err
	}
	if m.UserID != userID {
		return errors.ErrNotMessageAuthor
	}
	return nil
}

func (s *MessageService) requireMember(userID, messageID string) error {
	m, err := s.messages.GetMessage(messageID)
	if err != nil {
		return err
	}
	ch, err := s.channels.GetChannel(m.ChannelID)
	if err != nil {
		return err
	}
	if !ch.HasMember(userID) {
		return errors.ErrNotChannelMember
	}
	return nil
}

// detectLang guesses the message language before masking so leetspeak
// substitutions cannot skew the detection.
func detectLang(body string) string {
	if body == "" {
		return ""
	}
	info := whatlanggo.Detect(body)
	return info.Lang.Iso6391()
}

func normalizeSchedule(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
