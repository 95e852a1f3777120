package domain

import (
	"encoding/json"
	"time"
)

// InstanceStatus tracks whether an instance can still receive work.
type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "active"
	InstanceCompleted InstanceStatus = "completed"
)

// Instance is a runtime activation of a topic definition.
type Instance struct {
	// ID is unique within the conversation.
	ID string `json:"id"`

	// TopicName references the governing definition in the registry.
	// Instances are resolved by name, so the registry must outlive them.
	TopicName string `json:"topic"`

	// State is private to the topic's own behaviors. The engine never looks inside.
	State json.RawMessage `json:"state,omitempty"`

	// CallbackID is the instance notified on completion. Empty for the root.
	CallbackID string `json:"callback_id,omitempty"`

	Status      InstanceStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewInstance creates an active instance record with empty state.
func NewInstance(id, topicName, callbackID string, now time.Time) *Instance {
	return &Instance{
		ID:         id,
		TopicName:  topicName,
		CallbackID: callbackID,
		Status:     InstanceActive,
		CreatedAt:  now,
	}
}

// Completed reports whether the instance reached its terminal state.
func (i *Instance) Completed() bool {
	return i.Status == InstanceCompleted
}

// MarkCompleted moves the instance to its terminal state.
func (i *Instance) MarkCompleted(now time.Time) {
	i.Status = InstanceCompleted
	i.CompletedAt = &now
}

// Clone returns a deep copy of the record.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	c := *i
	if i.State != nil {
		c.State = append(json.RawMessage(nil), i.State...)
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
