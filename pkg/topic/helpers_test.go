package topic_test

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
)

type ctxT = context.Context

// fakeTurn records what behaviors do with the turn without running a dispatcher.
type fakeTurn struct {
	event      domain.Event
	replies    []string
	created    []string
	dispatched []string
	ctx        map[string]any
}

func newFakeTurn(text string) *fakeTurn {
	return &fakeTurn{event: domain.NewMessage(text), ctx: map[string]any{}}
}

func (f *fakeTurn) ConversationID() string { return "test" }
func (f *fakeTurn) Event() domain.Event    { return f.event }
func (f *fakeTurn) Reply(text string)      { f.replies = append(f.replies, text) }
func (f *fakeTurn) Create(ctx context.Context, topicName string, args any, callbackID string) (string, error) {
	f.created = append(f.created, topicName)
	return topicName + "-child", nil
}
func (f *fakeTurn) Dispatch(instanceID string)                  { f.dispatched = append(f.dispatched, instanceID) }
func (f *fakeTurn) Instance(id string) (*domain.Instance, bool) { return nil, false }
func (f *fakeTurn) Context() map[string]any                     { return f.ctx }
func (f *fakeTurn) Logger() *slog.Logger                        { return logging.NewNop() }

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
