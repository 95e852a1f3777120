package middleware_test

import (
	"context"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
// It keeps pointers, so tests can inspect exactly what a middleware wrote.
type MockStore struct {
	data map[string]*domain.Conversation
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Conversation),
	}
}

func (s *MockStore) Save(ctx context.Context, id string, conv *domain.Conversation) error {
	s.data[id] = conv
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, ok := s.data[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.ConversationStore = (*MockStore)(nil)
