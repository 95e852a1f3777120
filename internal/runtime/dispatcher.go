package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ids"
	"github.com/aretw0/topical/pkg/topic"
)

// DefaultMaxSteps bounds the behavior invocations of a single turn.
const DefaultMaxSteps = 10000

// Catalog resolves topic definitions by name.
type Catalog interface {
	Lookup(name string) (topic.Definition, bool)
}

// Dispatcher runs turns against a conversation's instance store.
//
// The dispatcher holds no locks: callers must not run two turns of the same
// conversation concurrently. Turns of different conversations are independent.
type Dispatcher struct {
	catalog  Catalog
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	ids      ids.Generator
	maxSteps int
	prune    bool
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for diagnostics and anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithIDGenerator replaces the default sequential instance ID generator.
func WithIDGenerator(gen ids.Generator) Option {
	return func(d *Dispatcher) {
		if gen != nil {
			d.ids = gen
		}
	}
}

// WithMaxSteps sets the per-turn behavior invocation limit. Zero or negative
// values keep the default.
func WithMaxSteps(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxSteps = n
		}
	}
}

// WithPruneCompleted deletes instance records once they complete instead of
// keeping them marked as completed.
func WithPruneCompleted(prune bool) Option {
	return func(d *Dispatcher) {
		d.prune = prune
	}
}

// WithClock overrides the time source for instance timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a dispatcher resolving topics through catalog.
func New(catalog Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog:  catalog,
		logger:   logging.NewNop(),
		ids:      ids.Sequential{},
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunTurn processes one inbound event to completion.
//
// On the first event of a conversation the root factory runs and creates the
// root instance; every later event is routed to the root. The conversation is
// mutated in place, including on error, so callers that need atomicity should
// pass a clone and discard it when an error is returned.
func (d *Dispatcher) RunTurn(ctx context.Context, conv *domain.Conversation, event domain.Event, root topic.RootFactory) (*domain.TurnResult, error) {
	if conv == nil {
		return nil, fmt.Errorf("run turn: nil conversation")
	}
	if conv.Topical.Instances == nil {
		conv.Topical.Instances = make(map[string]*domain.Instance)
	}
	if conv.Context == nil {
		conv.Context = make(map[string]any)
	}

	t := d.newTurn(conv, event)
	d.emitTurn(ctx, domain.HookTurnStart, conv.ID, nil, nil)

	err := t.run(ctx, root)
	t.result.Steps = t.steps
	t.result.RootInstanceID = conv.Topical.RootInstanceID

	d.emitTurn(ctx, domain.HookTurnEnd, conv.ID, t.result, err)
	if err != nil {
		t.logger.Error("turn failed", "err", err, "steps", t.steps)
		return nil, err
	}
	t.logger.Debug("turn finished", "steps", t.steps, "replies", len(t.result.Replies))
	return t.result, nil
}

func (d *Dispatcher) emitTurn(ctx context.Context, typ domain.HookType, convID string, res *domain.TurnResult, err error) {
	hook := d.hooks.OnTurnStart
	if typ == domain.HookTurnEnd {
		hook = d.hooks.OnTurnEnd
	}
	if hook == nil {
		return
	}
	ev := &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: d.now(), Type: typ, ConversationID: convID},
		Err:       err,
	}
	if res != nil {
		ev.Steps = res.Steps
		ev.RootCompleted = res.RootCompleted
	}
	hook(ctx, ev)
}

func (d *Dispatcher) emitInstance(ctx context.Context, typ domain.HookType, convID string, rec *domain.Instance) {
	hook := d.hooks.OnInstanceCreated
	if typ == domain.HookInstanceCompleted {
		hook = d.hooks.OnInstanceCompleted
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.InstanceEvent{
		EventBase:  domain.EventBase{Timestamp: d.now(), Type: typ, ConversationID: convID},
		InstanceID: rec.ID,
		TopicName:  rec.TopicName,
		CallbackID: rec.CallbackID,
	})
}

func (d *Dispatcher) emitTransition(ctx context.Context, convID string, rec *domain.Instance, behavior domain.Behavior, verb domain.Verb) {
	if d.hooks.OnTransition == nil {
		return
	}
	d.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase:  domain.EventBase{Timestamp: d.now(), Type: domain.HookTransition, ConversationID: convID},
		InstanceID: rec.ID,
		TopicName:  rec.TopicName,
		Behavior:   behavior,
		Verb:       verb,
	})
}
