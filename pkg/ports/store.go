package ports

import (
	"context"

	"github.com/aretw0/topical/pkg/domain"
)

// ConversationStore persists conversation blobs, including the instance store
// under the reserved "topical" key, so a topic tree survives between events.
type ConversationStore interface {
	// Save persists the conversation under the given ID.
	Save(ctx context.Context, conversationID string, conv *domain.Conversation) error

	// Load retrieves a conversation.
	// Returns domain.ErrConversationNotFound if it does not exist.
	Load(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Delete removes a conversation. Deleting a missing conversation is not an error.
	Delete(ctx context.Context, conversationID string) error

	// List returns the IDs of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
