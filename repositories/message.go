//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	StoreMessage(m domain.Message) error
	GetMessage(id string) (domain.Message, error)
	LatestMessages(channelID string, limit int) ([]domain.Message, error)
	ListMessageIDs(channelID string) ([]string, error)
	UpdateBody(id, body string, editedAt time.Time) (domain.Message, error)
	DeleteMessage(id string) error
	ToggleReaction(id, userID, emoji string) (domain.Message, error)
	ToggleStar(id, userID string) (domain.Message, error)
	StarredMessages(userID string) ([]domain.Message, error)
	AttachmentMessages(channelID string) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	bus *ChangeBus
}

func NewMessageRepository(db *badger.DB, bus *ChangeBus) *MessageRepository {
	return &MessageRepository{db: db, bus: bus}
}

// StoreMessage persists the message under its chronological key and keeps
// a plain ID index so single-message lookups skip the channel scan.
func (r *MessageRepository) StoreMessage(m domain.Message) error {
	if err := validateMessage(m); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	key := msgKey(m.ChannelID, m.CreatedAt, m.ID)
	err = update(r.db, func(txn *badger.Txn) error {
		if err := txn.Set(msgIDKey(m.ID), key); err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	r.publish(event.Created, m)
	return nil
}

func (r *MessageRepository) GetMessage(id string) (domain.Message, error) {
	var m domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		return readMessage(txn, id, &m)
	})
	return m, err
}

// LatestMessages returns up to limit most recent messages of a channel in
// ascending creation order. Thanks to the padded timestamp in the key the
// reverse iterator walks newest-first; the slice is reversed afterwards
// for display order.
func (r *MessageRepository) LatestMessages(channelID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := msgChanPrefix(channelID)
		// Seek past the newest possible timestamp, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return fmt.Errorf("unmarshal failed: %w", err)
				}
				out = append(out, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func (r *MessageRepository) ListMessageIDs(channelID string) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := msgChanPrefix(channelID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if id := messageIDFromKey(it.Item().Key()); id != "" {
				ids = append(ids, id)
			}
		}
		return nil
	})
	return ids, err
}

func (r *MessageRepository) UpdateBody(id, body string, editedAt time.Time) (domain.Message, error) {
	return r.mutate(id, event.Updated, func(m *domain.Message) {
		m.Body = body
		at := editedAt.UTC()
		m.EditedAt = &at
	})
}

func (r *MessageRepository) DeleteMessage(id string) error {
	var deleted domain.Message
	err := update(r.db, func(txn *badger.Txn) error {
		if err := readMessage(txn, id, &deleted); err != nil {
			return err
		}
		if err := txn.Delete(msgKey(deleted.ChannelID, deleted.CreatedAt, deleted.ID)); err != nil {
			return err
		}
		return txn.Delete(msgIDKey(id))
	})
	if err != nil {
		return err
	}
	r.publish(event.Deleted, deleted)
	return nil
}

// ToggleReaction flips userID's membership of the emoji's reactor set
// inside one transaction. The emoji key is dropped entirely once its set
// empties. Conflict retries in update make concurrent toggles from
// different users commute instead of overwriting each other.
func (r *MessageRepository) ToggleReaction(id, userID, emoji string) (domain.Message, error) {
	return r.mutate(id, event.Updated, func(m *domain.Message) {
		if m.Reactions == nil {
			m.Reactions = make(map[string][]string)
		}
		reactors := m.Reactions[emoji]
		if contains(reactors, userID) {
			reactors = remove(reactors, userID)
		} else {
			reactors = append(reactors, userID)
		}
		if len(reactors) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = reactors
		}
		if len(m.Reactions) == 0 {
			m.Reactions = nil
		}
	})
}

// ToggleStar is the symmetric add/remove on the starred-by set.
func (r *MessageRepository) ToggleStar(id, userID string) (domain.Message, error) {
	return r.mutate(id, event.Updated, func(m *domain.Message) {
		if contains(m.StarredBy, userID) {
			m.StarredBy = remove(m.StarredBy, userID)
		} else {
			m.StarredBy = append(m.StarredBy, userID)
		}
	})
}

// StarredMessages collects the messages a user has starred across all
// channels, oldest first.
func (r *MessageRepository) StarredMessages(userID string) ([]domain.Message, error) {
	return r.scanAll(func(m domain.Message) bool {
		return m.StarredByUser(userID)
	})
}

// AttachmentMessages lists the file-bearing messages of one channel.
func (r *MessageRepository) AttachmentMessages(channelID string) ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := msgChanPrefix(channelID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return fmt.Errorf("unmarshal failed: %w", err)
				}
				if m.HasAttachment() {
					out = append(out, m)
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

func (r *MessageRepository) mutate(id string, kind event.Kind, apply func(*domain.Message)) (domain.Message, error) {
	var m domain.Message
	err := update(r.db, func(txn *badger.Txn) error {
		if err := readMessage(txn, id, &m); err != nil {
			return err
		}
		apply(&m)
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return txn.Set(msgKey(m.ChannelID, m.CreatedAt, m.ID), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	r.publish(kind, m)
	return m, nil
}

func (r *MessageRepository) scanAll(keep func(domain.Message) bool) ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(msgPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m domain.Message
				if err := json.Unmarshal(val, &m); err != nil {
					return fmt.Errorf("unmarshal failed: %w", err)
				}
				if keep(m) {
					out = append(out, m)
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

func (r *MessageRepository) publish(kind event.Kind, m domain.Message) {
	r.bus.Publish(event.Change{
		Collection: event.Messages,
		Kind:       kind,
		EntityID:   m.ID,
		ChannelID:  m.ChannelID,
		At:         time.Now().UTC(),
	})
}

func readMessage(txn *badger.Txn, id string, out *domain.Message) error {
	item, err := txn.Get(msgIDKey(id))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrMessageNotFound
		}
		return err
	}
	var key []byte
	if err := item.Value(func(val []byte) error {
		key = append([]byte{}, val...)
		return nil
	}); err != nil {
		return err
	}
	record, err := txn.Get(key)
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrMessageNotFound
		}
		return err
	}
	return record.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("unmarshal failed: %w", err)
		}
		return nil
	})
}

// messageIDFromKey extracts the trailing UUID of a chronological message key.
func messageIDFromKey(key []byte) string {
	parts := strings.Split(string(key), ":")
	if len(parts) < 4 {
		return ""
	}
	return parts[len(parts)-1]
}

func validateMessage(m domain.Message) error {
	if m.ID == "" || m.ChannelID == "" || m.UserID == "" {
		return fmt.Errorf("message record missing required fields")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("message record missing creation time")
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func remove(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func reverse(messages []domain.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
