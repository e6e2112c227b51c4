//go:generate go run go.uber.org/mock/mockgen -source=channel.go -destination=../mocks/mock_channel_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/dgraph-io/badger/v4"
)

type IChannelRepository interface {
	CreateChannel(ch domain.Channel) error
	GetChannel(id string) (domain.Channel, error)
	GetChannelByInvite(code string) (domain.Channel, error)
	ListPublicChannels() ([]domain.Channel, error)
	ListDirectChannels(userID string) ([]domain.Channel, error)
	FindDirectChannel(a, b string) (domain.Channel, bool, error)
	SetInviteCode(id, code string) error
	AddMember(id, userID string) (domain.Channel, error)
	RemoveMember(id, userID string) (domain.Channel, error)
	DeleteChannel(id string) error
}

type ChannelRepository struct {
	db  *badger.DB
	bus *ChangeBus
}

func NewChannelRepository(db *badger.DB, bus *ChangeBus) *ChannelRepository {
	return &ChannelRepository{db: db, bus: bus}
}

func (r *ChannelRepository) CreateChannel(ch domain.Channel) error {
	if err := validateChannel(ch); err != nil {
		return err
	}
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	err = update(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(chanKey(ch.ID)); err == nil {
			return errors.ErrAlreadyExists
		}
		return txn.Set(chanKey(ch.ID), data)
	})
	if err != nil {
		return err
	}
	r.publish(event.Created, ch.ID)
	return nil
}

func (r *ChannelRepository) GetChannel(id string) (domain.Channel, error) {
	var ch domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		return readChannel(txn, id, &ch)
	})
	return ch, err
}

// GetChannelByInvite resolves the unique invite index to its channel.
func (r *ChannelRepository) GetChannelByInvite(code string) (domain.Channel, error) {
	var ch domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(inviteKey(code))
		if err != nil {
			return errors.ErrInviteNotFound
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return readChannel(txn, id, &ch)
	})
	return ch, err
}

func (r *ChannelRepository) ListPublicChannels() ([]domain.Channel, error) {
	return r.scan(func(ch domain.Channel) bool {
		return !ch.IsDirect()
	})
}

func (r *ChannelRepository) ListDirectChannels(userID string) ([]domain.Channel, error) {
	return r.scan(func(ch domain.Channel) bool {
		return ch.IsDirect() && ch.HasMember(userID)
	})
}

// FindDirectChannel locates the direct channel of an unordered user pair.
// The scan mirrors the dedup check done at creation: one direct channel
// per pair, regardless of member order.
func (r *ChannelRepository) FindDirectChannel(a, b string) (domain.Channel, bool, error) {
	matches, err := r.scan(func(ch domain.Channel) bool {
		return ch.SamePair(a, b)
	})
	if err != nil || len(matches) == 0 {
		return domain.Channel{}, false, err
	}
	return matches[0], true, nil
}

// SetInviteCode swaps the invite index entry and the channel document in a
// single transaction. Returns ErrAlreadyExists when the code is taken by
// another channel, letting the caller retry with a fresh one. The previous
// code stops resolving the moment the transaction commits.
func (r *ChannelRepository) SetInviteCode(id, code string) error {
	err := update(r.db, func(txn *badger.Txn) error {
		var ch domain.Channel
		if err := readChannel(txn, id, &ch); err != nil {
			return err
		}
		if item, err := txn.Get(inviteKey(code)); err == nil {
			var owner string
			if err := item.Value(func(val []byte) error {
				owner = string(val)
				return nil
			}); err != nil {
				return err
			}
			if owner != id {
				return errors.ErrAlreadyExists
			}
		}
		if ch.InviteCode != "" && ch.InviteCode != code {
			if err := txn.Delete(inviteKey(ch.InviteCode)); err != nil {
				return err
			}
		}
		ch.InviteCode = code
		data, err := json.Marshal(ch)
		if err != nil {
			return err
		}
		if err := txn.Set(inviteKey(code), []byte(id)); err != nil {
			return err
		}
		return txn.Set(chanKey(id), data)
	})
	if err != nil {
		return err
	}
	r.publish(event.Updated, id)
	return nil
}

// AddMember is a commutative set-add on the member field. Adding an
// existing member is a no-op, which makes invite joins idempotent.
func (r *ChannelRepository) AddMember(id, userID string) (domain.Channel, error) {
	return r.mutate(id, func(ch *domain.Channel) {
		if !ch.HasMember(userID) {
			ch.Members = append(ch.Members, userID)
		}
	})
}

// RemoveMember is the symmetric set-difference. Removing the last member
// does not delete the channel; deletion is an explicit creator action.
func (r *ChannelRepository) RemoveMember(id, userID string) (domain.Channel, error) {
	return r.mutate(id, func(ch *domain.Channel) {
		members := ch.Members[:0]
		for _, m := range ch.Members {
			if m != userID {
				members = append(members, m)
			}
		}
		ch.Members = members
	})
}

// DeleteChannel removes the channel, its invite index entry and every
// message stored under it, including the per-message ID index entries.
// The cascade is a deliberate policy: a deleted channel tombstones its
// whole history.
func (r *ChannelRepository) DeleteChannel(id string) error {
	err := update(r.db, func(txn *badger.Txn) error {
		var ch domain.Channel
		if err := readChannel(txn, id, &ch); err != nil {
			return err
		}
		if ch.InviteCode != "" {
			if err := txn.Delete(inviteKey(ch.InviteCode)); err != nil {
				return err
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := msgChanPrefix(id)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			msgID := messageIDFromKey(key)
			if msgID != "" {
				if err := txn.Delete(msgIDKey(msgID)); err != nil {
					return err
				}
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(chanKey(id))
	})
	if err != nil {
		return err
	}
	r.publish(event.Deleted, id)
	return nil
}

func (r *ChannelRepository) mutate(id string, apply func(*domain.Channel)) (domain.Channel, error) {
	var ch domain.Channel
	err := update(r.db, func(txn *badger.Txn) error {
		if err := readChannel(txn, id, &ch); err != nil {
			return err
		}
		apply(&ch)
		data, err := json.Marshal(ch)
		if err != nil {
			return err
		}
		return txn.Set(chanKey(id), data)
	})
	if err != nil {
		return domain.Channel{}, err
	}
	r.publish(event.Updated, id)
	return ch, nil
}

func (r *ChannelRepository) scan(keep func(domain.Channel) bool) ([]domain.Channel, error) {
	var out []domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(chanPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var ch domain.Channel
				if err := json.Unmarshal(val, &ch); err != nil {
					return fmt.Errorf("unmarshal failed: %w", err)
				}
				if keep(ch) {
					out = append(out, ch)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (r *ChannelRepository) publish(kind event.Kind, id string) {
	r.bus.Publish(event.Change{
		Collection: event.Channels,
		Kind:       kind,
		EntityID:   id,
		ChannelID:  id,
		At:         time.Now().UTC(),
	})
}

func readChannel(txn *badger.Txn, id string, out *domain.Channel) error {
	item, err := txn.Get(chanKey(id))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrChannelNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("unmarshal failed: %w", err)
		}
		return nil
	})
}

func validateChannel(ch domain.Channel) error {
	if ch.ID == "" || ch.Name == "" || ch.CreatedBy == "" {
		return fmt.Errorf("channel record missing required fields")
	}
	if ch.Kind != domain.ChannelPublic && ch.Kind != domain.ChannelDirect {
		return fmt.Errorf("unknown channel kind %q", ch.Kind)
	}
	if ch.IsDirect() && len(ch.Members) != 2 {
		return errors.ErrDirectChannelMembers
	}
	return nil
}
