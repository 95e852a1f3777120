package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topical/internal/config"
	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/adapters/memory"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/persistence/middleware"
	"github.com/aretw0/topical/pkg/prompts"
	"github.com/aretw0/topical/pkg/topic"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	return cfg
}

func newStack(t *testing.T, cfg *config.Config, opts ...StackOption) *Stack {
	t.Helper()
	stack, err := NewStack(cfg, logging.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Close() })
	return stack
}

func send(t *testing.T, stack *Stack, id, text string) *domain.TurnResult {
	t.Helper()
	res, err := stack.Engine.Send(context.Background(), id, domain.NewMessage(text))
	require.NoError(t, err)
	return res
}

func TestProfileDialog(t *testing.T) {
	stack := newStack(t, memoryConfig())

	res := send(t, stack, "p1", "hello")
	assert.Equal(t, []string{
		"Hi! Let's set up your profile. Type `exit` at any time to leave.",
		"What's your **name**?",
	}, res.Texts())

	assert.Equal(t, []string{"Which **email** should we use?"}, send(t, stack, "p1", "Ada").Texts())
	assert.Equal(t, []string{"And your favourite **color**?"}, send(t, stack, "p1", "ada@example.com").Texts())

	res = send(t, stack, "p1", "Blue")
	assert.Equal(t, []string{"Thanks, Ada! We'll write to ada@example.com about all things blue."}, res.Texts())
	require.True(t, res.RootCompleted)
	assert.Equal(t, map[string]string{"name": "Ada", "email": "ada@example.com", "color": "Blue"}, res.RootPayload)

	assert.Equal(t, []string{prompts.FormTopic, ProfileTopic, prompts.TextTopic}, stack.Engine.Topics())
}

func TestNewStack_Backends(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Dir = t.TempDir()

		send(t, newStack(t, cfg), "c1", "hello")

		ids, err := newStack(t, cfg).Engine.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, ids)
	})

	t.Run("Bolt", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Backend = config.BackendBolt
		cfg.Store.Bolt.Path = filepath.Join(t.TempDir(), "nested", "topical.db")

		first, err := NewStack(cfg, logging.NewNop())
		require.NoError(t, err)
		send(t, first, "c1", "hello")
		require.NoError(t, first.Close())

		conv, err := newStack(t, cfg).Engine.Inspect(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, 1, conv.Turns)
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Store.Backend = config.BackendRedis
		cfg.Store.Redis.Addr = mr.Addr()

		stack := newStack(t, cfg)
		send(t, stack, "c1", "hello")
		send(t, stack, "c1", "Ada")

		assert.True(t, mr.Exists("topical:conversation:c1"))
		assert.False(t, mr.Exists("topical:lock:c1"), "lock released after each turn")
	})
}

func TestNewStack_Security(t *testing.T) {
	raw := memory.NewStore()
	cfg := memoryConfig()
	cfg.Security.EncryptionKey = strings.Repeat("k", 32)
	cfg.Security.PIIPatterns = []string{"(?i)^email$"}

	stack := newStack(t, cfg, WithStoreOverride(raw))
	send(t, stack, "c1", "hello")
	send(t, stack, "c1", "Ada")
	send(t, stack, "c1", "ada@example.com")

	sealed, err := raw.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Contains(t, sealed.Context, middleware.EnvelopeKey)
	assert.Empty(t, sealed.Topical.Instances)

	conv, err := stack.Engine.Inspect(context.Background(), "c1")
	require.NoError(t, err)
	var form *domain.Instance
	for _, inst := range conv.Topical.Instances {
		if inst.TopicName == prompts.FormTopic {
			form = inst
		}
	}
	require.NotNil(t, form)
	assert.Contains(t, string(form.State), `"email":"ada@example.com"`, "topic state is not masked")
}

func TestNewStack_PIIKeepsDialogWorking(t *testing.T) {
	cfg := memoryConfig()
	cfg.Security.PIIPatterns = []string{"(?i)name", "(?i)email"}
	stack := newStack(t, cfg)

	send(t, stack, "c1", "hi")
	assert.Equal(t, []string{"Which **email** should we use?"}, send(t, stack, "c1", "Ada").Texts())
	assert.Equal(t, []string{"And your favourite **color**?"}, send(t, stack, "c1", "ada@example.com").Texts())

	res := send(t, stack, "c1", "blue")
	require.True(t, res.RootCompleted)
	assert.Equal(t, map[string]string{"name": "Ada", "email": "ada@example.com", "color": "blue"}, res.RootPayload)
}

func TestNewStack_CustomTopics(t *testing.T) {
	echo := topic.New[struct{}, struct{}, struct{}]("echo").
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[struct{}], c *topic.Controller[struct{}]) error {
			turn.Reply(turn.Event().Text)
			return nil
		})
	register := func(reg *topic.Registry) error {
		_, err := reg.Register(echo, topic.Strict)
		return err
	}

	stack := newStack(t, memoryConfig(), WithTopics(register, echo.Root(struct{}{})))
	send(t, stack, "c1", "first")
	assert.Equal(t, []string{"again"}, send(t, stack, "c1", "again").Texts())
	assert.Equal(t, []string{"echo"}, stack.Engine.Topics())
}

func TestNewHTTPServer_Metrics(t *testing.T) {
	cfg := memoryConfig()
	stack := newStack(t, cfg, WithMetrics())
	send(t, stack, "c1", "hello")

	srv := httptest.NewServer(NewHTTPServer(stack, cfg, logging.NewNop()).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "topical_turns_total")
}
