package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topical"
	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
)

func TestRunChat_Text(t *testing.T) {
	stack := newStack(t, memoryConfig())
	out := &bytes.Buffer{}

	err := RunChat(context.Background(), stack, logging.NewNop(), ChatOptions{
		In:  strings.NewReader("Ada\nada@example.com\nBlue\n"),
		Out: out,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "v"+topical.Version)
	assert.Contains(t, text, ">>> Conversation 'default' active.")
	assert.Contains(t, text, "What's your **name**?")
	assert.Contains(t, text, "Thanks, Ada!")
	assert.Contains(t, text, "[System] conversation finished")
}

func TestRunChat_JSON(t *testing.T) {
	stack := newStack(t, memoryConfig())
	out := &bytes.Buffer{}

	err := RunChat(context.Background(), stack, logging.NewNop(), ChatOptions{
		ConversationID: "json",
		JSON:           true,
		In:             strings.NewReader("\"Ada\"\n"),
		Out:            out,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "no banner in JSON mode")

	var res domain.TurnResult
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &res))
	assert.Equal(t, "json", res.ConversationID)
	assert.Equal(t, []string{"Which **email** should we use?"}, res.Texts())
}

func TestRunChat_Fresh(t *testing.T) {
	stack := newStack(t, memoryConfig())
	ctx := context.Background()
	opts := ChatOptions{Quiet: true, In: strings.NewReader("Ada\n"), Out: &bytes.Buffer{}}
	require.NoError(t, RunChat(ctx, stack, logging.NewNop(), opts))

	out := &bytes.Buffer{}
	opts = ChatOptions{Quiet: true, Fresh: true, In: strings.NewReader(""), Out: out}
	require.NoError(t, RunChat(ctx, stack, logging.NewNop(), opts))
	assert.Contains(t, out.String(), "What's your **name**?")

	conv, err := stack.Engine.Inspect(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.Turns)
}
