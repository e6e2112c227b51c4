package repositories

import (
	"testing"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestChannelRepository_Membership_Set_Semantics(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChannelRepository(db, NewChangeBus())

	creator := uuid.NewString()
	other := uuid.NewString()
	ch := testChannel(creator)
	req.NoError(repository.CreateChannel(ch))

	// When the same member is added twice
	_, err := repository.AddMember(ch.ID, other)
	req.NoError(err)
	again, err := repository.AddMember(ch.ID, other)
	req.NoError(err)

	// Then membership stays a set
	req.ElementsMatch([]string{creator, other}, again.Members)

	// And removal is symmetric
	left, err := repository.RemoveMember(ch.ID, other)
	req.NoError(err)
	req.ElementsMatch([]string{creator}, left.Members)
}

func TestChannelRepository_Invite_Index_Swap(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChannelRepository(db, NewChangeBus())

	ch := testChannel(uuid.NewString())
	req.NoError(repository.CreateChannel(ch))

	// Given a first code
	req.NoError(repository.SetInviteCode(ch.ID, "AAAA1111"))
	resolved, err := repository.GetChannelByInvite("AAAA1111")
	req.NoError(err)
	req.Equal(ch.ID, resolved.ID)

	// When the code is replaced
	req.NoError(repository.SetInviteCode(ch.ID, "BBBB2222"))

	// Then the old code stops resolving
	_, err = repository.GetChannelByInvite("AAAA1111")
	req.ErrorIs(err, errors.ErrInviteNotFound)
	resolved, err = repository.GetChannelByInvite("BBBB2222")
	req.NoError(err)
	req.Equal(ch.ID, resolved.ID)
}

func TestChannelRepository_Invite_Collision_Detected(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChannelRepository(db, NewChangeBus())

	first := testChannel(uuid.NewString())
	second := testChannel(uuid.NewString())
	req.NoError(repository.CreateChannel(first))
	req.NoError(repository.CreateChannel(second))

	req.NoError(repository.SetInviteCode(first.ID, "SAMECODE"))

	// A second channel cannot claim the same code
	err := repository.SetInviteCode(second.ID, "SAMECODE")
	req.ErrorIs(err, errors.ErrAlreadyExists)
}

func TestChannelRepository_FindDirectChannel_Ignores_Pair_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChannelRepository(db, NewChangeBus())

	a, b := uuid.NewString(), uuid.NewString()
	dm := domain.Channel{
		ID:        uuid.NewString(),
		Kind:      domain.ChannelDirect,
		CreatedBy: a,
		Members:   []string{a, b},
		CreatedAt: time.Now().UTC(),
	}
	req.NoError(repository.CreateChannel(dm))

	// Both orderings resolve the same conversation
	found, ok, err := repository.FindDirectChannel(b, a)
	req.NoError(err)
	req.True(ok)
	req.Equal(dm.ID, found.ID)

	_, ok, err = repository.FindDirectChannel(a, uuid.NewString())
	req.NoError(err)
	req.False(ok)
}

func TestChannelRepository_Delete_Cascades_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	bus := NewChangeBus()
	channels := NewChannelRepository(db, bus)
	messages := NewMessageRepository(db, bus)

	creator := uuid.NewString()
	ch := testChannel(creator)
	req.NoError(channels.CreateChannel(ch))
	req.NoError(channels.SetInviteCode(ch.ID, "GONESOON"))

	at := time.Now().UTC()
	m := testMessage(ch.ID, creator, at)
	req.NoError(messages.StoreMessage(m))

	// When the channel is deleted
	req.NoError(channels.DeleteChannel(ch.ID))

	// Then channel, invite, messages and the ID index are all gone
	_, err := channels.GetChannel(ch.ID)
	req.ErrorIs(err, errors.ErrChannelNotFound)
	_, err = channels.GetChannelByInvite("GONESOON")
	req.ErrorIs(err, errors.ErrInviteNotFound)
	_, err = messages.GetMessage(m.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
	remaining, err := messages.LatestMessages(ch.ID, 0)
	req.NoError(err)
	req.Empty(remaining)
}
