package domain

import (
	"reflect"
	"sort"
)

// ConversationDiff represents the changes a turn made to a conversation.
// It is designed to be serialized to JSON and streamed to observers.
type ConversationDiff struct {
	// ConversationID is always present to identify the target.
	ConversationID string `json:"conversation_id"`

	// RootInstanceID is set when the root pointer changed.
	RootInstanceID *string `json:"root_instance_id,omitempty"`

	// Created lists instances that appeared in the store.
	Created []string `json:"created,omitempty"`

	// Completed lists instances that moved to the completed state (or were pruned).
	Completed []string `json:"completed,omitempty"`

	// Context contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Context map[string]any `json:"context,omitempty"`
}

// Diff calculates the difference between oldConv and newConv.
// If oldConv is nil, it returns a diff representing the entire newConv (initial load).
func Diff(oldConv, newConv *Conversation) *ConversationDiff {
	if newConv == nil {
		return nil
	}

	diff := &ConversationDiff{
		ConversationID: newConv.ID,
	}

	if oldConv == nil || oldConv.Topical.RootInstanceID != newConv.Topical.RootInstanceID {
		if newConv.Topical.RootInstanceID != "" {
			root := newConv.Topical.RootInstanceID
			diff.RootInstanceID = &root
		}
	}

	diff.Created, diff.Completed = diffInstances(oldConv, newConv)
	diff.Context = diffContext(oldConv, newConv)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffInstances(old, new *Conversation) (created, completed []string) {
	var before map[string]*Instance
	if old != nil {
		before = old.Topical.Instances
	}

	for id, inst := range new.Topical.Instances {
		prev, existed := before[id]
		if !existed {
			created = append(created, id)
			if inst.Completed() {
				completed = append(completed, id)
			}
			continue
		}
		if !prev.Completed() && inst.Completed() {
			completed = append(completed, id)
		}
	}

	// Pruned instances count as completed.
	for id, prev := range before {
		if _, still := new.Topical.Instances[id]; !still && !prev.Completed() {
			completed = append(completed, id)
		}
	}

	sort.Strings(created)
	sort.Strings(completed)
	return created, completed
}

func diffContext(old *Conversation, new *Conversation) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Context {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Context {
		oldVal, exists := old.Context[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Context {
		if _, exists := new.Context[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *ConversationDiff) IsEmpty() bool {
	return d.RootInstanceID == nil &&
		len(d.Created) == 0 &&
		len(d.Completed) == 0 &&
		len(d.Context) == 0
}
