package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/topical"
	"github.com/aretw0/topical/pkg/topic"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nameState struct {
	Name string `json:"name"`
}

func newServer(t *testing.T) *Server {
	t.Helper()
	greet := topic.New[nameState, struct{}, string]("greet").
		OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[nameState], _ struct{}, c *topic.Controller[string]) error {
			turn.Reply("Who are you?")
			return nil
		}).
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[nameState], c *topic.Controller[string]) error {
			inst.State.Name = turn.Event().Text
			turn.Reply("Hi " + inst.State.Name)
			return c.Complete(inst.State.Name)
		})
	reg := topic.NewRegistry()
	reg.MustRegister(greet, topic.Strict)

	eng, err := topical.New(reg, topical.WithRoot(greet.Root(struct{}{})))
	require.NoError(t, err)
	return NewServer(eng)
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_SendEvent(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	res, err := s.handleSend(ctx, call(nil), map[string]any{"conversation_id": "c1", "text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Who are you?"}, res.Replies)
	assert.False(t, res.RootCompleted)

	res, err = s.handleSend(ctx, call(nil), map[string]any{"conversation_id": "c1", "text": "Ada", "payload": `{"source":"test"}`})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi Ada"}, res.Replies)
	assert.True(t, res.RootCompleted)
	assert.Equal(t, "Ada", res.RootPayload)

	_, err = s.handleSend(ctx, call(nil), map[string]any{"text": "x"})
	assert.Error(t, err)

	_, err = s.handleSend(ctx, call(nil), map[string]any{"conversation_id": "c2", "text": "x", "payload": "[1,2]"})
	assert.ErrorContains(t, err, "payload")
}

func TestServer_InspectAndReset(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.handleSend(ctx, call(nil), map[string]any{"conversation_id": "c1", "text": "hello"})
	require.NoError(t, err)

	res, err := s.handleInspect(ctx, call(map[string]any{"conversation_id": "c1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var conv map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &conv))
	assert.Contains(t, conv, "topical")

	res, err = s.handleReset(ctx, call(map[string]any{"conversation_id": "c1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleInspect(ctx, call(map[string]any{"conversation_id": "c1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")

	res, err = s.handleInspect(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_TopicsResource(t *testing.T) {
	s := newServer(t)

	contents, err := s.readTopics(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, TopicsURI, text.URI)
	assert.JSONEq(t, `["greet"]`, text.Text)
}
