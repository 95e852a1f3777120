package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_CloneIsolation(t *testing.T) {
	c := NewConversation("c")
	inst := NewInstance("1", "root", "", time.Now())
	inst.State = json.RawMessage(`{"n":1}`)
	c.Topical.Instances["1"] = inst
	c.Context["k"] = "v"

	clone := c.Clone()
	clone.Topical.Instances["1"].State[5] = '2'
	clone.Topical.Instances["1"].MarkCompleted(time.Now())
	clone.Context["k"] = "changed"
	clone.Topical.Instances["2"] = NewInstance("2", "child", "1", time.Now())

	assert.JSONEq(t, `{"n":1}`, string(c.Topical.Instances["1"].State))
	assert.False(t, c.Topical.Instances["1"].Completed())
	assert.Equal(t, "v", c.Context["k"])
	assert.Len(t, c.Topical.Instances, 1)
}

func TestConversation_CloneNestedContext(t *testing.T) {
	c := NewConversation("c")
	c.Context["profile"] = map[string]any{"name": "ada", "tags": []any{"a", map[string]any{"k": "v"}}}

	clone := c.Clone()
	profile := clone.Context["profile"].(map[string]any)
	profile["name"] = "grace"
	tags := profile["tags"].([]any)
	tags[0] = "b"
	tags[1].(map[string]any)["k"] = "changed"

	original := c.Context["profile"].(map[string]any)
	assert.Equal(t, "ada", original["name"])
	assert.Equal(t, []any{"a", map[string]any{"k": "v"}}, original["tags"])
}

func TestConversation_Done(t *testing.T) {
	c := NewConversation("c")
	assert.False(t, c.Done(), "not started")

	c.Topical.Started = true
	assert.True(t, c.Done(), "started without root means the root completed during init")

	c.Topical.RootInstanceID = "1"
	c.Topical.Instances["1"] = NewInstance("1", "root", "", time.Now())
	assert.False(t, c.Done())

	c.Topical.Instances["1"].MarkCompleted(time.Now())
	assert.True(t, c.Done())
}

func TestConversation_ReservedKeyLayout(t *testing.T) {
	c := NewConversation("c")
	c.Topical.RootInstanceID = "1"
	c.Topical.Instances["1"] = NewInstance("1", "root", "", time.Unix(0, 0).UTC())

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))

	topical, ok := generic[TopicalKey].(map[string]any)
	require.True(t, ok, "instance store must live under %q", TopicalKey)
	assert.Equal(t, "1", topical["root_instance_id"])
	assert.Contains(t, topical["instances"], "1")
}

func TestProtocolError_Unwrap(t *testing.T) {
	err := &ProtocolError{InstanceID: "1", TopicName: "a", Behavior: BehaviorReceive, Reason: "twice"}
	assert.True(t, errors.Is(err, ErrProtocolViolation))
	assert.Contains(t, err.Error(), "a.receive")
}

func TestVerb_Allowed(t *testing.T) {
	assert.True(t, VerbDispatch.Allowed(BehaviorInit))
	assert.False(t, VerbDispatch.Allowed(BehaviorReceive))
	assert.False(t, VerbDispatch.Allowed(BehaviorNext))
	assert.True(t, VerbComplete.Allowed(BehaviorComplete))
	assert.True(t, VerbAdvance.Allowed(BehaviorNext))
}
