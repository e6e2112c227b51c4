// Package repositories is the document store adapter: typed records over
// BadgerDB with prefix-scan queries, JSON-encoded documents and a change
// bus feeding the live view synchronizer.
package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes. Message and notification keys embed a 19-digit zero-padded
// timestamp so a lexicographic prefix scan yields chronological order; the
// trailing UUID disconnects collisions when two records land on the same
// nanosecond.
const (
	userPrefix   = "user:"
	emailPrefix  = "email:"
	chanPrefix   = "chan:"
	invitePrefix = "invite:"
	msgPrefix    = "msg:"
	msgIDPrefix  = "msgid:"
	notifPrefix  = "notif:"
)

func userKey(id string) []byte       { return []byte(userPrefix + id) }
func emailKey(email string) []byte   { return []byte(emailPrefix + email) }
func chanKey(id string) []byte       { return []byte(chanPrefix + id) }
func inviteKey(code string) []byte   { return []byte(invitePrefix + code) }
func msgIDKey(id string) []byte      { return []byte(msgIDPrefix + id) }
func msgChanPrefix(chanID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", msgPrefix, chanID))
}

func msgKey(chanID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", msgPrefix, chanID, at.UnixNano(), id))
}

func notifUserPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", notifPrefix, userID))
}

func notifKey(userID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", notifPrefix, userID, at.UnixNano(), id))
}

const maxTxnRetries = 5

// update runs fn in a read-write transaction, retrying on conflict so that
// commutative set mutations (reactions, stars, membership) survive
// concurrent writers instead of losing updates.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Open opens the backing store at path with quiet logging defaults.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return db, nil
}
