package domain

import (
	"context"
	"time"
)

// HookType defines the category of a lifecycle event.
type HookType string

const (
	HookTurnStart         HookType = "turn_start"
	HookTurnEnd           HookType = "turn_end"
	HookInstanceCreated   HookType = "instance_created"
	HookInstanceCompleted HookType = "instance_completed"
	HookTransition        HookType = "transition"
	HookAnomaly           HookType = "anomaly"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           HookType  `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

// TurnEvent marks the start or end of a turn.
type TurnEvent struct {
	EventBase
	Steps         int   `json:"steps,omitempty"`
	RootCompleted bool  `json:"root_completed,omitempty"`
	Err           error `json:"-"`
}

// InstanceEvent represents the creation or completion of an instance.
type InstanceEvent struct {
	EventBase
	InstanceID string `json:"instance_id"`
	TopicName  string `json:"topic"`
	CallbackID string `json:"callback_id,omitempty"`
}

// TransitionEvent is emitted after every behavior invocation.
type TransitionEvent struct {
	EventBase
	InstanceID string   `json:"instance_id"`
	TopicName  string   `json:"topic"`
	Behavior   Behavior `json:"behavior"`
	Verb       Verb     `json:"verb"`
}

// AnomalyEvent reports a recoverable structural error absorbed by the engine
// (unknown instance or topic, unhandled completion, work on a completed instance).
type AnomalyEvent struct {
	EventBase
	InstanceID string `json:"instance_id,omitempty"`
	TopicName  string `json:"topic,omitempty"`
	Err        error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart         func(context.Context, *TurnEvent)
	OnTurnEnd           func(context.Context, *TurnEvent)
	OnInstanceCreated   func(context.Context, *InstanceEvent)
	OnInstanceCompleted func(context.Context, *InstanceEvent)
	OnTransition        func(context.Context, *TransitionEvent)
	OnAnomaly           func(context.Context, *AnomalyEvent)
}

// Merge combines two hook sets; both are called, h first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurnStart:         chain(h.OnTurnStart, other.OnTurnStart),
		OnTurnEnd:           chain(h.OnTurnEnd, other.OnTurnEnd),
		OnInstanceCreated:   chain(h.OnInstanceCreated, other.OnInstanceCreated),
		OnInstanceCompleted: chain(h.OnInstanceCompleted, other.OnInstanceCompleted),
		OnTransition:        chain(h.OnTransition, other.OnTransition),
		OnAnomaly:           chain(h.OnAnomaly, other.OnAnomaly),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
