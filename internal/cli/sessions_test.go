package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationCommands(t *testing.T) {
	stack := newStack(t, memoryConfig())
	ctx := context.Background()
	out := &bytes.Buffer{}

	require.NoError(t, ListConversations(ctx, stack.Engine, out))
	assert.Equal(t, "No conversations found.\n", out.String())

	send(t, stack, "a", "hi")
	send(t, stack, "b", "hi")

	out.Reset()
	require.NoError(t, ListConversations(ctx, stack.Engine, out))
	assert.Equal(t, "Conversations:\n- a\n- b\n", out.String())

	out.Reset()
	require.NoError(t, InspectConversation(ctx, stack.Engine, "a", out))
	assert.Contains(t, out.String(), `"root_instance_id": "i1"`)

	out.Reset()
	assert.Error(t, InspectConversation(ctx, stack.Engine, "missing", out))

	out.Reset()
	require.NoError(t, GraphConversation(ctx, stack.Engine, "a", out))
	assert.Contains(t, out.String(), "i2 --> i3")
	assert.Contains(t, out.String(), "class i3 active;")

	out.Reset()
	GraphTopics(stack.Engine.Registry(), out)
	assert.Contains(t, out.String(), "profile --> form")
	assert.Contains(t, out.String(), "form --> text_prompt")

	out.Reset()
	require.NoError(t, RemoveConversations(ctx, stack.Engine, []string{"a", "b"}, out))
	assert.Equal(t, "Removed conversation 'a'\nRemoved conversation 'b'\n", out.String())

	out.Reset()
	ListTopics(stack.Engine, out)
	assert.Equal(t, "form\nprofile\ntext_prompt\n", out.String())
}
