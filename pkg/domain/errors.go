package domain

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned when a conversation ID cannot be found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrProtocolViolation is returned when a behavior requests more than one lifecycle
// transition in a single invocation, or a transition it is not allowed to request.
// It is fatal to the current turn.
var ErrProtocolViolation = errors.New("lifecycle protocol violation")

// ErrUnknownInstance is reported when a referenced instance is absent from the store.
var ErrUnknownInstance = errors.New("unknown instance")

// ErrUnknownTopic is reported when an instance references a topic that is not registered.
var ErrUnknownTopic = errors.New("unknown topic")

// ErrUnhandledCompletion is reported when a child completes and its parent topic
// registered no completion handler for the child's topic.
var ErrUnhandledCompletion = errors.New("unhandled completion")

// ErrInstanceCompleted is reported when work is routed to an instance that already completed.
var ErrInstanceCompleted = errors.New("instance already completed")

// ErrDuplicateTopic is returned when registering a topic name that is already taken
// under the strict redefinition policy.
var ErrDuplicateTopic = errors.New("duplicate topic registration")

// ErrStepLimit is returned when a single turn exceeds the configured number of
// behavior invocations, which usually means a topic keeps advancing forever.
var ErrStepLimit = errors.New("turn step limit exceeded")

// ProtocolError carries the details of a lifecycle protocol violation.
type ProtocolError struct {
	InstanceID string
	TopicName  string
	Behavior   Behavior
	Reason     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation in %s.%s (instance %s): %s", e.TopicName, e.Behavior, e.InstanceID, e.Reason)
}

// Unwrap allows errors.Is(err, ErrProtocolViolation).
func (e *ProtocolError) Unwrap() error {
	return ErrProtocolViolation
}
