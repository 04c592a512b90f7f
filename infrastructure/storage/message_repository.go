//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(limit int) ([]DiskMessage, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID       uuid.UUID `json:"id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
	Lang     string    `json:"lang,omitempty"`
	Censored bool      `json:"censored,omitempty"`
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
}

// GetMessages returns the most recent messages, oldest first.
// The scan walks backwards from the newest key and stops at limit, the
// configured limitMessages caps it further. A limit <= 0 means no limit
// besides the configured one.
func (m MessageRepository) GetMessages(limit int) ([]DiskMessage, error) {
	capacity := limit
	if m.limitMessages != nil && (capacity <= 0 || *m.limitMessages < capacity) {
		capacity = *m.limitMessages
	}

	var newestFirst []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Start past the newest possible key: msg:9999999999999999999
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if capacity > 0 && len(newestFirst) == capacity {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", capacity))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var message DiskMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				newestFirst = append(newestFirst, message)
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

	messages := make([]DiskMessage, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		messages = append(messages, newestFirst[i])
	}
	return messages, nil
}

func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, message.At.UnixNano(), message.ID))
}
