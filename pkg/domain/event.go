package domain

import "time"

// EventType categorizes inbound events. The engine does not interpret it.
type EventType string

const (
	EventMessage            EventType = "message"
	EventConversationUpdate EventType = "conversation_update"
)

// Event is the inbound trigger of a turn.
type Event struct {
	ID        string         `json:"id,omitempty"`
	Type      EventType      `json:"type"`
	Text      string         `json:"text,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage builds a message event carrying user text.
func NewMessage(text string) Event {
	return Event{
		Type:      EventMessage,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Reply is an outbound message produced by a topic while handling a turn.
type Reply struct {
	InstanceID string `json:"instance_id,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Text       string `json:"text"`
}

// TurnResult summarizes one processed turn.
type TurnResult struct {
	ConversationID string  `json:"conversation_id"`
	Replies        []Reply `json:"replies"`

	// RootInstanceID is the root after the turn (empty if it completed during init).
	RootInstanceID string `json:"root_instance_id,omitempty"`

	// RootCreated is true on the turn that ran the root factory.
	RootCreated bool `json:"root_created"`

	// RootCompleted is true on the turn in which the root topic finished.
	RootCompleted bool `json:"root_completed"`
	RootPayload   any  `json:"root_payload,omitempty"`

	// Steps is the number of behavior invocations executed.
	Steps int `json:"steps"`

	// Diff is what the turn changed in the stored conversation, nil if nothing.
	Diff *ConversationDiff `json:"diff,omitempty"`
}

// Texts returns the reply texts in order.
func (r *TurnResult) Texts() []string {
	out := make([]string, 0, len(r.Replies))
	for _, rep := range r.Replies {
		out = append(out, rep.Text)
	}
	return out
}
