package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHandler_Output(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := runner.NewJSONHandler(strings.NewReader(""), buf)

	err := handler.Output(context.Background(), &domain.TurnResult{
		ConversationID: "c1",
		Replies:        []domain.Reply{{Text: "Hello", Topic: "greeter", InstanceID: "i1"}},
		RootCreated:    true,
		Steps:          1,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var decoded domain.TurnResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "c1", decoded.ConversationID)
	assert.Equal(t, []string{"Hello"}, decoded.Texts())
	assert.True(t, decoded.RootCreated)
}

func TestJSONHandler_Input(t *testing.T) {
	handler := runner.NewJSONHandler(strings.NewReader("\"Hello World\"\njust plain text\n\"tail\""), io.Discard)
	ctx := context.Background()

	for _, want := range []string{"Hello World", "just plain text", "tail"} {
		got, err := handler.Input(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := handler.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONHandler_SystemOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := runner.NewJSONHandler(strings.NewReader(""), buf)
	require.NoError(t, handler.SystemOutput(context.Background(), "done"))
	assert.JSONEq(t, `{"system":"done"}`, buf.String())
}
