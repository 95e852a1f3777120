package domain

import (
	"sort"
	"time"
)

// TopicalKey is the reserved key under which the instance store lives in the
// conversation blob.
const TopicalKey = "topical"

// Topical is the conversation-scoped instance store.
type Topical struct {
	// Instances maps instance IDs to their records. Completed instances stay
	// here (marked completed) unless the dispatcher prunes them.
	Instances map[string]*Instance `json:"instances"`

	// RootInstanceID points to the root of the topic tree. Set once, on the
	// first processed event. Empty if the root completed during its own init.
	RootInstanceID string `json:"root_instance_id,omitempty"`

	// Started records that the first event was processed and the root factory ran.
	Started bool `json:"started"`

	// Seq backs the default sequential instance ID generator.
	Seq uint64 `json:"seq"`
}

// Conversation is the durable state blob of one conversation.
type Conversation struct {
	ID string `json:"id"`

	// Topical holds the engine-owned instance store.
	Topical Topical `json:"topical"`

	// Context is host/topic-owned conversation state the engine never interprets.
	Context map[string]any `json:"context,omitempty"`

	// Turns counts successfully committed turns.
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation blob.
func NewConversation(id string) *Conversation {
	return &Conversation{
		ID: id,
		Topical: Topical{
			Instances: make(map[string]*Instance),
		},
		Context: make(map[string]any),
	}
}

// Instance looks up an instance record by ID.
func (c *Conversation) Instance(id string) (*Instance, bool) {
	if id == "" || c.Topical.Instances == nil {
		return nil, false
	}
	inst, ok := c.Topical.Instances[id]
	return inst, ok
}

// Root returns the root instance record, if any.
func (c *Conversation) Root() (*Instance, bool) {
	return c.Instance(c.Topical.RootInstanceID)
}

// Done reports whether the conversation's root topic has finished.
func (c *Conversation) Done() bool {
	if !c.Topical.Started {
		return false
	}
	root, ok := c.Root()
	return !ok || root.Completed()
}

// ActiveInstances returns the IDs of instances that can still receive work, sorted.
func (c *Conversation) ActiveInstances() []string {
	ids := make([]string, 0, len(c.Topical.Instances))
	for id, inst := range c.Topical.Instances {
		if !inst.Completed() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Clone creates a deep copy of the instance store and of the nested maps and
// slices in Context, so a turn can mutate it freely and be discarded on failure.
// Other Context values are shared.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	next := *c
	next.Topical.Instances = make(map[string]*Instance, len(c.Topical.Instances))
	for id, inst := range c.Topical.Instances {
		next.Topical.Instances[id] = inst.Clone()
	}
	next.Context = copyMap(c.Context)
	return &next
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
