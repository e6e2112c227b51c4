package e2e

import (
	"context"
	"strings"
	"testing"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/runtime"
	"chat-sync/services"

	"github.com/stretchr/testify/suite"
)

type testMessagingSuite struct {
	BaseSuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &testMessagingSuite{})
}

func (s *testMessagingSuite) TestFullMessagingFlow() {
	const password = "ComplexPass123!"
	var (
		alice, bob domain.User
		channel    domain.Channel
		posted     domain.Message
	)

	s.Step("Register two users and log in")
	{
		var err error
		alice, _, err = s.Engine.Auth.Register("alice@example.com", "Alice", password)
		s.Require().NoError(err)
		bob, _, err = s.Engine.Auth.Register("bob@example.com", "Bob", password)
		s.Require().NoError(err)

		logged, token, err := s.Engine.Auth.Login("alice@example.com", password)
		s.Require().NoError(err)
		s.Require().Equal(alice.ID, logged.ID)
		s.Require().NotEmpty(token)
	}

	s.Step("Alice creates a channel and Bob joins via invite")
	{
		var err error
		channel, err = s.Engine.Membership.CreateChannel(alice.ID, "launch-party")
		s.Require().NoError(err)

		code, err := s.Engine.Membership.InviteCode(alice.ID, channel.ID)
		s.Require().NoError(err)
		joined, err := s.Engine.Membership.JoinViaInvite(bob.ID, code)
		s.Require().NoError(err)
		s.Require().True(joined.HasMember(bob.ID))

		// Alice is notified of the arrival
		notifs, err := s.Engine.Notifications.List(alice.ID)
		s.Require().NoError(err)
		s.Require().Len(notifs, 1)
		s.Require().Contains(notifs[0].Body, "Bob")
	}

	s.Step("Bob watches the channel live")
	feed, cancelFeed, err := s.Synchronizer.Subscribe(bob.ID, channel.ID, 50)
	s.Require().NoError(err)
	defer cancelFeed()
	s.Require().Empty(<-feed.C())

	s.Step("Alice posts, the message is moderated and reaches Bob's feed")
	{
		posted, err = s.Engine.Messages.PostMessage(services.PostMessageCommand{
			ChannelID: channel.ID,
			UserID:    alice.ID,
			Body:      "what the heck, we ship today!",
		})
		s.Require().NoError(err)
		s.Require().Equal("what the ****, we ship today!", posted.Body)

		snapshot := s.awaitSnapshot(feed, func(messages []domain.Message) bool {
			return len(messages) == 1
		})
		s.Require().Equal(posted.ID, snapshot[0].ID)
	}

	s.Step("Bob reacts and stars, Alice edits")
	{
		reacted, err := s.Engine.Messages.ToggleReaction(bob.ID, posted.ID, "🚀")
		s.Require().NoError(err)
		s.Require().Equal([]string{bob.ID}, reacted.Reactions["🚀"])

		_, err = s.Engine.Messages.ToggleStar(bob.ID, posted.ID)
		s.Require().NoError(err)

		edited, err := s.Engine.Messages.EditMessage(alice.ID, posted.ID, "we ship today!")
		s.Require().NoError(err)
		s.Require().True(edited.Edited())

		snapshot := s.awaitSnapshot(feed, func(messages []domain.Message) bool {
			return len(messages) == 1 && messages[0].Body == "we ship today!"
		})
		s.Require().True(snapshot[0].StarredByUser(bob.ID))
	}

	s.Step("Search finds the live wording only")
	{
		results, total, err := s.Engine.Messages.SearchMessages(
			context.Background(), bob.ID, channel.ID, "ship", 0)
		s.Require().NoError(err)
		s.Require().Equal(uint64(1), total)
		s.Require().Equal(posted.ID, results[0].ID)
	}

	s.Step("Bob shares a file within his quota")
	{
		content := "quarterly numbers"
		att, err := s.Engine.Messages.UploadAttachment(context.Background(), services.UploadCommand{
			UserID: bob.ID,
			Name:   "numbers.txt",
			Size:   int64(len(content)),
			Reader: strings.NewReader(content),
		})
		s.Require().NoError(err)

		_, err = s.Engine.Messages.PostMessage(services.PostMessageCommand{
			ChannelID:  channel.ID,
			UserID:     bob.ID,
			Attachment: &att,
		})
		s.Require().NoError(err)

		files, err := s.Engine.Messages.ChannelFiles(alice.ID, channel.ID)
		s.Require().NoError(err)
		s.Require().Len(files, 1)
		s.Require().Equal("numbers.txt", files[0].Attachment.Name)
	}

	s.Step("The pair also talks in a direct channel")
	{
		dm, err := s.Engine.Membership.OpenDirectChannel(alice.ID, bob.ID)
		s.Require().NoError(err)
		again, err := s.Engine.Membership.OpenDirectChannel(bob.ID, alice.ID)
		s.Require().NoError(err)
		s.Require().Equal(dm.ID, again.ID)

		_, err = s.Engine.Messages.PostMessage(services.PostMessageCommand{
			ChannelID: dm.ID, UserID: bob.ID, Body: "just between us",
		})
		s.Require().NoError(err)

		timeline, err := s.Engine.Messages.Timeline(alice.ID, dm.ID, 0)
		s.Require().NoError(err)
		s.Require().Len(timeline, 1)
	}

	s.Step("Only the creator can delete the channel, and it takes the history")
	{
		err := s.Engine.Membership.DeleteChannel(bob.ID, channel.ID)
		s.Require().ErrorIs(err, errors.ErrNotChannelCreator)

		s.Require().NoError(s.Engine.Membership.DeleteChannel(alice.ID, channel.ID))
		_, err = s.Engine.Messages.Timeline(alice.ID, channel.ID, 0)
		s.Require().ErrorIs(err, errors.ErrChannelNotFound)
	}
}

func (s *testMessagingSuite) awaitSnapshot(feed *runtime.Feed, accept func([]domain.Message) bool) []domain.Message {
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snapshot, open := <-feed.C():
			s.Require().True(open, "feed closed: %v", feed.Err())
			if accept(snapshot) {
				return snapshot
			}
		case <-deadline:
			s.Require().FailNow("no matching snapshot arrived")
			return nil
		}
	}
}
