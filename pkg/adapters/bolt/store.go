// Package bolt stores conversations in a local bbolt database file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/topical/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

// DefaultBucket holds one key per conversation.
const DefaultBucket = "conversations"

// Store implements ports.ConversationStore on top of bbolt.
// bbolt allows a single writer per file, so one process owns the database.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Option configures a Store.
type Option func(*Store)

// WithBucket overrides the bucket name.
func WithBucket(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.bucket = []byte(name)
		}
	}
}

// Open opens (or creates) the database file at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	s := &Store{db: db, bucket: []byte(DefaultBucket)}
	for _, opt := range opts {
		opt(s)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return s, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists the conversation.
func (s *Store) Save(ctx context.Context, conversationID string, conv *domain.Conversation) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	js, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(conversationID), js)
	})
}

// Load retrieves a conversation.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(s.bucket).Get([]byte(conversationID))
		if bs == nil {
			return domain.ErrConversationNotFound
		}
		// bs is only valid inside the transaction; Unmarshal copies it.
		conv = &domain.Conversation{}
		return json.Unmarshal(bs, conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Delete removes a conversation.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(conversationID))
	})
}

// List returns conversation IDs in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
