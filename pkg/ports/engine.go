package ports

import (
	"context"

	"github.com/aretw0/topical/pkg/domain"
)

// ConversationEngine is the driving port used by transports.
// Implementations serialize turns per conversation.
type ConversationEngine interface {
	// Send runs one turn of the conversation with the engine's root topic,
	// creating the conversation on its first event.
	Send(ctx context.Context, conversationID string, event domain.Event) (*domain.TurnResult, error)

	// Inspect returns the stored conversation blob.
	Inspect(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Reset deletes the conversation; the next event starts a fresh root.
	Reset(ctx context.Context, conversationID string) error

	// List returns the IDs of known conversations.
	List(ctx context.Context) ([]string, error)

	// Topics returns the names of registered topics.
	Topics() []string
}
