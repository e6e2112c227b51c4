//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
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

type IUserRepository interface {
	CreateUser(user domain.User) error
	GetUser(id string) (domain.User, error)
	GetUserByEmail(email string) (domain.User, error)
	UpdateProfile(id, displayName, status string) (domain.User, error)
	UpdatePlan(id string, p domain.Plan, uploadLimit int64) (domain.User, error)
}

type UserRepository struct {
	db  *badger.DB
	bus *ChangeBus
}

func NewUserRepository(db *badger.DB, bus *ChangeBus) *UserRepository {
	return &UserRepository{db: db, bus: bus}
}

// CreateUser persists the profile and its unique email index entry in one
// transaction. The email is expected lowercase-normalized by the caller;
// it is normalized again here as a store-boundary guarantee.
func (r *UserRepository) CreateUser(user domain.User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := validateUser(user); err != nil {
		return err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	err = update(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(user.Email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return err
	}

	r.publish(event.Created, user.ID)
	return nil
}

func (r *UserRepository) GetUser(id string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		return readUser(txn, id, &user)
	})
	return user, err
}

// GetUserByEmail resolves the unique index for an exact, case-insensitive
// match. Substring or fuzzy lookup is deliberately unsupported: user
// enumeration by partial match is a privacy hole.
func (r *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(NormalizeEmail(email)))
		if err != nil {
			return errors.ErrUserNotFound
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return readUser(txn, id, &user)
	})
	return user, err
}

func (r *UserRepository) UpdateProfile(id, displayName, status string) (domain.User, error) {
	return r.mutate(id, func(u *domain.User) {
		u.DisplayName = displayName
		u.Status = status
	})
}

func (r *UserRepository) UpdatePlan(id string, p domain.Plan, uploadLimit int64) (domain.User, error) {
	return r.mutate(id, func(u *domain.User) {
		u.Plan = p
		u.UploadLimit = uploadLimit
	})
}

func (r *UserRepository) mutate(id string, apply func(*domain.User)) (domain.User, error) {
	var user domain.User
	err := update(r.db, func(txn *badger.Txn) error {
		if err := readUser(txn, id, &user); err != nil {
			return err
		}
		apply(&user)
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	r.publish(event.Updated, id)
	return user, nil
}

func (r *UserRepository) publish(kind event.Kind, id string) {
	r.bus.Publish(event.Change{
		Collection: event.Users,
		Kind:       kind,
		EntityID:   id,
		UserID:     id,
		At:         time.Now().UTC(),
	})
}

func readUser(txn *badger.Txn, id string, out *domain.User) error {
	item, err := txn.Get(userKey(id))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("unmarshal failed: %w", err)
		}
		return validateUser(*out)
	})
}

// validateUser is the store-boundary check on the closed user record shape.
func validateUser(u domain.User) error {
	if u.ID == "" || u.Email == "" {
		return fmt.Errorf("user record missing required fields")
	}
	if !u.Plan.Valid() {
		return fmt.Errorf("unknown plan %q", u.Plan)
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
