package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/dgraph-io/badger/v4"
)

type INotificationRepository interface {
	StoreNotification(n domain.Notification) error
	ListNotifications(userID string) ([]domain.Notification, error)
	UnreadCount(userID string) (int, error)
	MarkRead(userID, id string) error
	DeleteNotification(userID, id string) error
	ClearNotifications(userID string) error
}

type NotificationRepository struct {
	db  *badger.DB
	bus *ChangeBus
}

func NewNotificationRepository(db *badger.DB, bus *ChangeBus) *NotificationRepository {
	return &NotificationRepository{db: db, bus: bus}
}

func (r *NotificationRepository) StoreNotification(n domain.Notification) error {
	if n.ID == "" || n.UserID == "" {
		return fmt.Errorf("notification record missing required fields")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	err = update(r.db, func(txn *badger.Txn) error {
		return txn.Set(notifKey(n.UserID, n.CreatedAt, n.ID), data)
	})
	if err != nil {
		return err
	}
	r.publish(event.Created, n)
	return nil
}

// ListNotifications returns a user's notifications newest first.
func (r *NotificationRepository) ListNotifications(userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := notifUserPrefix(userID)
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var n domain.Notification
				if err := json.Unmarshal(val, &n); err != nil {
					return fmt.Errorf("unmarshal failed: %w", err)
				}
				out = append(out, n)
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

func (r *NotificationRepository) UnreadCount(userID string) (int, error) {
	all, err := r.ListNotifications(userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range all {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(userID, id string) error {
	return r.mutate(userID, id, func(n *domain.Notification) {
		n.Read = true
	})
}

func (r *NotificationRepository) DeleteNotification(userID, id string) error {
	err := update(r.db, func(txn *badger.Txn) error {
		key, err := findNotification(txn, userID, id)
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	r.publish(event.Deleted, domain.Notification{ID: id, UserID: userID})
	return nil
}

func (r *NotificationRepository) ClearNotifications(userID string) error {
	err := update(r.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := notifUserPrefix(userID)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(event.Deleted, domain.Notification{UserID: userID})
	return nil
}

func (r *NotificationRepository) mutate(userID, id string, apply func(*domain.Notification)) error {
	err := update(r.db, func(txn *badger.Txn) error {
		key, err := findNotification(txn, userID, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var n domain.Notification
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		}); err != nil {
			return err
		}
		apply(&n)
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	r.publish(event.Updated, domain.Notification{ID: id, UserID: userID})
	return nil
}

// findNotification scans the user's prefix for the key carrying the given
// ID. Notifications per user stay small, so the scan beats a second index.
func findNotification(txn *badger.Txn, userID, id string) ([]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := notifUserPrefix(userID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		if messageIDFromKey(key) == id {
			return it.Item().KeyCopy(nil), nil
		}
	}
	return nil, errors.ErrNotificationNotFound
}

func (r *NotificationRepository) publish(kind event.Kind, n domain.Notification) {
	r.bus.Publish(event.Change{
		Collection: event.Notifications,
		Kind:       kind,
		EntityID:   n.ID,
		UserID:     n.UserID,
		At:         time.Now().UTC(),
	})
}
