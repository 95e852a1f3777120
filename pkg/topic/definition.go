package topic

import (
	"context"
	"log/slog"

	"github.com/aretw0/topical/pkg/domain"
)

// Turn is the conversational context handed to every behavior.
// It is only valid for the duration of the turn that created it.
type Turn interface {
	// ConversationID identifies the conversation being processed.
	ConversationID() string

	// Event is the inbound event that triggered the turn.
	Event() domain.Event

	// Reply queues an outbound message attributed to the running instance.
	Reply(text string)

	// Create instantiates topicName, runs its init behavior and returns the new
	// instance ID. It returns "" when the instance completed during init.
	// args may be the topic's own init argument type or a loosely typed value
	// (e.g. map[string]any) that is decoded into it.
	Create(ctx context.Context, topicName string, args any, callbackID string) (string, error)

	// Dispatch routes the inbound event to another instance, typically a live
	// child. The child's receive runs after the calling behavior returns.
	Dispatch(instanceID string)

	// Instance returns the stored record of an instance.
	Instance(id string) (*domain.Instance, bool)

	// Context is the host-owned part of the conversation blob.
	Context() map[string]any

	// Logger is scoped to the conversation.
	Logger() *slog.Logger
}

// RootFactory creates the root instance on the first event of a conversation
// and returns its ID.
type RootFactory func(ctx context.Context, turn Turn) (string, error)

// Definition is the untyped, engine-facing view of a topic.
// Implementations decode inst.State before running their behavior and write it
// back afterwards; the engine treats it as opaque bytes.
type Definition interface {
	Name() string

	Init(ctx context.Context, turn Turn, inst *domain.Instance, args any) (domain.Transition, error)
	Next(ctx context.Context, turn Turn, inst *domain.Instance) (domain.Transition, error)
	Receive(ctx context.Context, turn Turn, inst *domain.Instance) (domain.Transition, error)

	// Complete delivers the completion payload of child to its parent inst.
	Complete(ctx context.Context, turn Turn, inst *domain.Instance, child *domain.Instance, payload any) (domain.Transition, error)

	// Handles reports whether a completion handler exists for the child topic.
	Handles(childTopic string) bool

	// Children lists the child topics with registered completion handlers.
	Children() []string
}
