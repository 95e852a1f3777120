package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/topical"
	"github.com/aretw0/topical/pkg/topic"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

// fakeConn records publications and captures the subscription handler.
type fakeConn struct {
	mu        sync.Mutex
	published []published
	subject   string
	queue     string
	handler   nats.MsgHandler
	subErr    error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{subject: subject, data: data})
	return nil
}

func (f *fakeConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.subject, f.queue, f.handler = subject, queue, cb
	return &nats.Subscription{}, nil
}

func (f *fakeConn) last(t *testing.T, subject string) Reply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].subject == subject {
			var r Reply
			require.NoError(t, json.Unmarshal(f.published[i].data, &r))
			return r
		}
	}
	t.Fatalf("nothing published on %s", subject)
	return Reply{}
}

type countState struct {
	N int `json:"n"`
}

func newEngine(t *testing.T) *topical.Engine {
	t.Helper()
	count := topic.New[countState, struct{}, int]("count").
		OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[countState], _ struct{}, c *topic.Controller[int]) error {
			return c.Dispatch()
		}).
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[countState], c *topic.Controller[int]) error {
			inst.State.N++
			turn.Reply(turn.Event().Text)
			return nil
		})
	reg := topic.NewRegistry()
	reg.MustRegister(count, topic.Strict)
	eng, err := topical.New(reg, topical.WithRoot(count.Root(struct{}{})))
	require.NoError(t, err)
	return eng
}

func TestAdapter_StartSubscribes(t *testing.T) {
	conn := &fakeConn{}
	a := New(newEngine(t), conn, WithPrefix("bots."), WithQueue("q"))

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, "bots.events.*", conn.subject)
	assert.Equal(t, "q", conn.queue)
	assert.Error(t, a.Start(context.Background()), "second start")

	conn.handler(&nats.Msg{Subject: "bots.events.c1", Data: []byte("hello")})
	r := conn.last(t, "bots.replies.c1")
	assert.Equal(t, "c1", r.ConversationID)
	require.NotNil(t, r.Result)
	assert.Equal(t, []string{"hello"}, r.Result.Texts())
}

func TestAdapter_StartFails(t *testing.T) {
	a := New(newEngine(t), &fakeConn{subErr: errors.New("no connection")})
	assert.ErrorContains(t, a.Start(context.Background()), "no connection")
	assert.NoError(t, a.Stop())
}

func TestAdapter_HandleRequestReply(t *testing.T) {
	conn := &fakeConn{}
	eng := newEngine(t)
	a := New(eng, conn)
	ctx := context.Background()

	a.Handle(ctx, &nats.Msg{Subject: a.EventsSubject("c1"), Data: []byte(`{"text":"hi","payload":{"k":"v"}}`), Reply: "_INBOX.1"})
	r := conn.last(t, "_INBOX.1")
	require.NotNil(t, r.Result)
	assert.True(t, r.Result.RootCreated)
	assert.Equal(t, []string{"hi"}, r.Result.Texts())

	a.Handle(ctx, &nats.Msg{Subject: a.EventsSubject("c1"), Data: []byte("again")})
	conv, err := eng.Inspect(ctx, "c1")
	require.NoError(t, err)
	root, _ := conv.Root()
	assert.JSONEq(t, `{"n":2}`, string(root.State))
}

func TestAdapter_HandleErrors(t *testing.T) {
	conn := &fakeConn{}
	a := New(newEngine(t), conn)
	ctx := context.Background()

	a.Handle(ctx, &nats.Msg{Subject: a.EventsSubject("c1"), Data: []byte(`{"text":`)})
	r := conn.last(t, a.RepliesSubject("c1"))
	assert.Nil(t, r.Result)
	assert.Contains(t, r.Error, "can't parse")

	a.Handle(ctx, &nats.Msg{Subject: "other.subject", Data: []byte("x")})
	a.Handle(ctx, &nats.Msg{Subject: a.EventsSubject(""), Data: []byte("x")})
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Len(t, conn.published, 1, "messages on foreign subjects are ignored")
}
