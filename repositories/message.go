//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	AppendMessage(sender string, recipient *string, body string, at time.Time) (uint64, error)
	ListGroupMessages() ([]domain.Message, error)
	ListConversation(userA, userB string) ([]domain.Message, error)
	DeleteMessage(id uint64, requestingUser string) (bool, error)
	DeleteAllGroupMessages() (int, error)
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// NewMessageRepository wires the append-only message log on top of BadgerDB.
// The key is formatted as "msg:{id zero-padded to 20 digits}" so that
// lexicographic iteration order equals id order, making the id the sole
// ordering key for history.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), 1)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence lease.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type diskMessage struct {
	ID        uint64  `json:"id"`
	Sender    string  `json:"sender"`
	Recipient *string `json:"recipient"`
	Body      string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%020d", id))
}

// AppendMessage assigns the next id and persists the message in one Update
// transaction. The sequence is safe for concurrent callers and never hands
// out the same id twice; the recipient is stored as an opaque label and is
// not checked against the user table.
func (m *MessageRepository) AppendMessage(sender string, recipient *string, body string, at time.Time) (uint64, error) {
	next, err := m.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	id := next + 1

	data, err := json.Marshal(diskMessage{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		Timestamp: at.UnixNano(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListGroupMessages returns every message with group scope, in id order.
// A full prefix scan is enough here; the id-ordered key layout is the only
// index the log maintains.
func (m *MessageRepository) ListGroupMessages() ([]domain.Message, error) {
	return m.scan(func(dm diskMessage) bool {
		return dm.Recipient == nil
	})
}

// ListConversation returns the direct messages exchanged between two users,
// in id order. It is symmetric in its arguments.
func (m *MessageRepository) ListConversation(userA, userB string) ([]domain.Message, error) {
	return m.scan(func(dm diskMessage) bool {
		if dm.Recipient == nil {
			return false
		}
		return (dm.Sender == userA && *dm.Recipient == userB) ||
			(dm.Sender == userB && *dm.Recipient == userA)
	})
}

func (m *MessageRepository) scan(keep func(diskMessage) bool) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("msg:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(val, &dm); err != nil {
					return err
				}
				if keep(dm) {
					messages = append(messages, toMessage(dm))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// DeleteMessage removes the message iff it exists and its sender equals
// requestingUser. A wrong owner or an unknown id changes nothing and is not
// an error; the bool reports whether a row went away.
func (m *MessageRepository) DeleteMessage(id uint64, requestingUser string) (bool, error) {
	deleted := false
	err := m.db.Update(func(txn *badger.Txn) error {
		key := messageKey(id)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var dm diskMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		}); err != nil {
			return err
		}
		if dm.Sender != requestingUser {
			return nil
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// DeleteAllGroupMessages wipes every group-scoped message in one transaction
// and returns how many were removed. Keys are collected first because the
// iterator must be closed before the deletes land.
func (m *MessageRepository) DeleteAllGroupMessages() (int, error) {
	count := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		var doomed [][]byte
		it := txn.NewIterator(badger.DefaultIteratorOptions)

		prefix := []byte("msg:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dm diskMessage
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			})
			if err != nil {
				it.Close()
				return err
			}
			if dm.Recipient == nil {
				doomed = append(doomed, item.KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		count = len(doomed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:        dm.ID,
		Sender:    dm.Sender,
		Recipient: dm.Recipient,
		Body:      dm.Body,
		Timestamp: time.Unix(0, dm.Timestamp).UTC(),
	}
}
