//go:generate go run go.uber.org/mock/mockgen -source=membership_service.go -destination=../mocks/mock_membership_service.go -package=mocks
package services

import (
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/repositories"
	"chat-sync/search"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Invite codes are 8 characters over an unambiguous uppercase alphabet.
const (
	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteLength   = 8
	inviteAttempts = 5
)

type IMembershipService interface {
	CreateChannel(creatorID, name string) (domain.Channel, error)
	OpenDirectChannel(userID, otherID string) (domain.Channel, error)
	ListPublicChannels() ([]domain.Channel, error)
	ListDirectChannels(userID string) ([]domain.Channel, error)
	InviteCode(userID, channelID string) (string, error)
	RegenerateInvite(userID, channelID string) (string, error)
	ResolveInvite(code string) (domain.Channel, error)
	JoinViaInvite(userID, code string) (domain.Channel, error)
	AddMember(actorID, channelID, userID string) (domain.Channel, error)
	RemoveMember(actorID, channelID, userID string) (domain.Channel, error)
	LeaveChannel(userID, channelID string) (domain.Channel, error)
	DeleteChannel(actorID, channelID string) error
	FindUserByEmail(email string) (domain.User, error)
}

type createChannelRequest struct {
	Name string `validate:"required,min=1,max=80"`
}

type MembershipService struct {
	channels      repositories.IChannelRepository
	users         repositories.IUserRepository
	messages      repositories.IMessageRepository
	notifications repositories.INotificationRepository
	index         *search.Index
	validate      *validator.Validate
	log           *slog.Logger
}

func NewMembershipService(
	channels repositories.IChannelRepository,
	users repositories.IUserRepository,
	messages repositories.IMessageRepository,
	notifications repositories.INotificationRepository,
	index *search.Index,
	log *slog.Logger,
) *MembershipService {
	return &MembershipService{
		channels:      channels,
		users:         users,
		messages:      messages,
		notifications: notifications,
		index:         index,
		validate:      validator.New(),
		log:           log,
	}
}

// CreateChannel opens a public channel with the creator as first member.
func (s *MembershipService) CreateChannel(creatorID, name string) (domain.Channel, error) {
	if err := s.validate.Struct(createChannelRequest{Name: name}); err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", errors.ErrEmptyChannelName, err)
	}
	if _, err := s.users.GetUser(creatorID); err != nil {
		return domain.Channel{}, err
	}

	ch := domain.Channel{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      domain.ChannelPublic,
		CreatedBy: creatorID,
		Members:   []string{creatorID},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.channels.CreateChannel(ch); err != nil {
		return domain.Channel{}, err
	}
	s.log.Info("channel created", slog.String("channel_id", ch.ID), slog.String("name", name))
	return ch, nil
}

// OpenDirectChannel returns the existing conversation between the pair if
// one exists, otherwise creates it. Member order in the pair is
// irrelevant, so repeated opens from either side converge on one channel.
func (s *MembershipService) OpenDirectChannel(userID, otherID string) (domain.Channel, error) {
	if userID == otherID {
		return domain.Channel{}, errors.ErrDirectChannelMembers
	}
	if _, err := s.users.GetUser(otherID); err != nil {
		return domain.Channel{}, err
	}

	existing, found, err := s.channels.FindDirectChannel(userID, otherID)
	if err != nil {
		return domain.Channel{}, err
	}
	if found {
		return existing, nil
	}

	ch := domain.Channel{
		ID:        uuid.NewString(),
		Kind:      domain.ChannelDirect,
		CreatedBy: userID,
		Members:   []string{userID, otherID},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.channels.CreateChannel(ch); err != nil {
		return domain.Channel{}, err
	}
	return ch, nil
}

func (s *MembershipService) ListPublicChannels() ([]domain.Channel, error) {
	return s.channels.ListPublicChannels()
}

func (s *MembershipService) ListDirectChannels(userID string) ([]domain.Channel, error) {
	return s.channels.ListDirectChannels(userID)
}

// InviteCode returns the channel's invite code, generating one lazily on
// first request. Only members may see it; direct channels have none.
func (s *MembershipService) InviteCode(userID, channelID string) (string, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return "", err
	}
	if ch.IsDirect() {
		return "", errors.ErrChannelNotFound
	}
	if !ch.HasMember(userID) {
		return "", errors.ErrNotChannelMember
	}
	if ch.InviteCode != "" {
		return ch.InviteCode, nil
	}
	return s.assignInvite(channelID)
}

// RegenerateInvite replaces the code, invalidating the old one. Creator
// only.
func (s *MembershipService) RegenerateInvite(userID, channelID string) (string, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return "", err
	}
	if ch.IsDirect() {
		return "", errors.ErrChannelNotFound
	}
	if ch.CreatedBy != userID {
		return "", errors.ErrNotChannelCreator
	}
	return s.assignInvite(channelID)
}

func (s *MembershipService) ResolveInvite(code string) (domain.Channel, error) {
	return s.channels.GetChannelByInvite(code)
}

// JoinViaInvite adds the user to the channel behind the code. Joining a
// channel one is already in is a no-op, not an error.
func (s *MembershipService) JoinViaInvite(userID, code string) (domain.Channel, error) {
	ch, err := s.channels.GetChannelByInvite(code)
	if err != nil {
		return domain.Channel{}, err
	}
	if ch.HasMember(userID) {
		return ch, nil
	}

	joined, err := s.channels.AddMember(ch.ID, userID)
	if err != nil {
		return domain.Channel{}, err
	}
	s.notifyJoin(joined, userID)
	return joined, nil
}

// AddMember lets an existing member bring someone into a public channel.
func (s *MembershipService) AddMember(actorID, channelID, userID string) (domain.Channel, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return domain.Channel{}, err
	}
	if ch.IsDirect() {
		return domain.Channel{}, errors.ErrDirectChannelMembers
	}
	if !ch.HasMember(actorID) {
		return domain.Channel{}, errors.ErrNotChannelMember
	}
	if _, err := s.users.GetUser(userID); err != nil {
		return domain.Channel{}, err
	}
	if ch.HasMember(userID) {
		return ch, nil
	}

	joined, err := s.channels.AddMember(channelID, userID)
	if err != nil {
		return domain.Channel{}, err
	}
	s.notifyJoin(joined, userID)
	return joined, nil
}

// RemoveMember ejects another member. Reserved to the creator; removing
// yourself is LeaveChannel.
func (s *MembershipService) RemoveMember(actorID, channelID, userID string) (domain.Channel, error) {
	if actorID == userID {
		return s.LeaveChannel(actorID, channelID)
	}

	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return domain.Channel{}, err
	}
	if ch.IsDirect() {
		return domain.Channel{}, errors.ErrDirectChannelMembers
	}
	if ch.CreatedBy != actorID {
		return domain.Channel{}, errors.ErrNotChannelCreator
	}
	if !ch.HasMember(userID) {
		return ch, nil
	}
	return s.channels.RemoveMember(channelID, userID)
}

// LeaveChannel removes the caller. Messages the user posted stay behind.
func (s *MembershipService) LeaveChannel(userID, channelID string) (domain.Channel, error) {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return domain.Channel{}, err
	}
	if ch.IsDirect() {
		return domain.Channel{}, errors.ErrDirectChannelMembers
	}
	if !ch.HasMember(userID) {
		return domain.Channel{}, errors.ErrNotChannelMember
	}
	return s.channels.RemoveMember(channelID, userID)
}

// DeleteChannel is reserved to the creator and erases the full history,
// including the search index entries for every message.
func (s *MembershipService) DeleteChannel(actorID, channelID string) error {
	ch, err := s.channels.GetChannel(channelID)
	if err != nil {
		return err
	}
	if ch.CreatedBy != actorID {
		return errors.ErrNotChannelCreator
	}

	ids, err := s.messages.ListMessageIDs(channelID)
	if err != nil {
		return err
	}
	if err := s.channels.DeleteChannel(channelID); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.index.DeindexMessage(id); err != nil {
			s.log.Warn("failed to deindex message",
				slog.String("message_id", id), slog.String("error", err.Error()))
		}
	}
	s.log.Info("channel deleted", slog.String("channel_id", channelID))
	return nil
}

// FindUserByEmail is an exact lookup on the normalized address, used to
// start direct conversations. Substring search is deliberately absent.
func (s *MembershipService) FindUserByEmail(email string) (domain.User, error) {
	return s.users.GetUserByEmail(email)
}

// assignInvite generates codes until one lands; a collision with another
// channel's code surfaces as ErrAlreadyExists and triggers a fresh draw.
func (s *MembershipService) assignInvite(channelID string) (string, error) {
	for i := 0; i < inviteAttempts; i++ {
		code, err := newInviteCode()
		if err != nil {
			return "", err
		}
		err = s.channels.SetInviteCode(channelID, code)
		if err == nil {
			return code, nil
		}
		if !stderrors.Is(err, errors.ErrAlreadyExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique invite code")
}

func newInviteCode() (string, error) {
	buf := make([]byte, inviteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, inviteLength)
	for i, b := range buf {
		code[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(code), nil
}

func (s *MembershipService) notifyJoin(ch domain.Channel, newMemberID string) {
	user, err := s.users.GetUser(newMemberID)
	if err != nil {
		return
	}
	for _, memberID := range ch.Members {
		if memberID == newMemberID {
			continue
		}
		n := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    memberID,
			Title:     "New member",
			Body:      fmt.Sprintf("%s joined #%s", user.DisplayName, ch.Name),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.notifications.StoreNotification(n); err != nil {
			s.log.Warn("failed to store join notification", slog.String("error", err.Error()))
		}
	}
}
