//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(username, credential string, privateKey, publicKey int64) (uint64, error)
	GetUser(username string) (domain.User, error)
	ListUsers() ([]domain.User, error)
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewUserRepository wires the user table on top of BadgerDB. The sequence
// hands out surrogate ids; bandwidth 1 so ids survive restarts without gaps.
func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 1)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// Close releases the id sequence lease.
func (u *UserRepository) Close() error {
	return u.seq.Release()
}

// diskUser is the stored shape. Usernames are the key, so the value only
// carries what the key does not.
type diskUser struct {
	ID         uint64 `json:"id"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
	PrivateKey int64  `json:"private_key"`
	PublicKey  int64  `json:"public_key"`
	CreatedAt  int64  `json:"created_at"`
}

func userKey(username string) []byte {
	return []byte("user:" + username)
}

// CreateUser persists a new user keyed by username. The existence check and
// the insert run in a single Update transaction, so two concurrent creations
// of the same username cannot both succeed.
func (u *UserRepository) CreateUser(username, credential string, privateKey, publicKey int64) (uint64, error) {
	next, err := u.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next user id: %w", err)
	}
	id := next + 1

	data, err := json.Marshal(diskUser{
		ID:         id,
		Username:   username,
		Credential: credential,
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		CreatedAt:  time.Now().Unix(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal user: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrDuplicateUsername
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (u *UserRepository) GetUser(username string) (domain.User, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &du)
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(du), nil
}

// ListUsers returns every registered user sorted by username ascending.
// Badger iterates keys in lexicographic order, so the "user:" prefix scan
// already yields that order.
func (u *UserRepository) ListUsers() ([]domain.User, error) {
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("user:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var du diskUser
				if err := json.Unmarshal(val, &du); err != nil {
					return err
				}
				users = append(users, toUser(du))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func toUser(du diskUser) domain.User {
	return domain.User{
		ID:         du.ID,
		Username:   du.Username,
		Credential: du.Credential,
		PrivateKey: du.PrivateKey,
		PublicKey:  du.PublicKey,
		CreatedAt:  time.Unix(du.CreatedAt, 0).UTC(),
	}
}
