package topical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/internal/runtime"
	"github.com/aretw0/topical/pkg/adapters/memory"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ids"
	"github.com/aretw0/topical/pkg/ports"
	"github.com/aretw0/topical/pkg/session"
	"github.com/aretw0/topical/pkg/topic"
)

// Version of the topical module.
const Version = "0.1.0"

// ErrNoRoot is returned by Send when a conversation has not started yet and
// the engine was built without a default root.
var ErrNoRoot = errors.New("no root topic configured")

// Engine is the high-level entry point for the Topical library.
// It loads the conversation, runs the turn under the conversation lock and
// saves the result only when the turn succeeds.
type Engine struct {
	registry   *topic.Registry
	dispatcher *runtime.Dispatcher
	sessions   *session.Manager

	store    ports.ConversationStore
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	ids      ids.Generator
	maxSteps int
	prune    bool
	root     topic.RootFactory
	now      func() time.Time
}

var _ ports.ConversationEngine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the conversation store (default: in-memory).
func WithStore(store ports.ConversationStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables a distributed lock around every turn, for deployments
// where several replicas share a store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL sets the lease requested from the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithIDGenerator replaces the per-conversation sequential instance IDs.
func WithIDGenerator(gen ids.Generator) Option {
	return func(e *Engine) {
		e.ids = gen
	}
}

// WithMaxSteps bounds the behavior invocations of a single turn.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithPruneCompleted deletes completed instance records instead of keeping them.
func WithPruneCompleted(prune bool) Option {
	return func(e *Engine) {
		e.prune = prune
	}
}

// WithRoot sets the root factory used by Send on the first event of a conversation.
func WithRoot(root topic.RootFactory) Option {
	return func(e *Engine) {
		e.root = root
	}
}

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New initializes an Engine over a populated registry.
// The registry is validated, so a completion handler wired to an unregistered
// topic fails here rather than in the middle of a conversation.
func New(registry *topic.Registry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	eng := &Engine{
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	sessionOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithLockTTL(eng.lockTTL),
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	eng.dispatcher = runtime.New(registry,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithIDGenerator(eng.ids),
		runtime.WithMaxSteps(eng.maxSteps),
		runtime.WithPruneCompleted(eng.prune),
		runtime.WithClock(eng.now),
	)

	return eng, nil
}

// RunTurn processes one event of conversationID. The conversation is created
// on its first event, when root builds the root instance; root is ignored on
// later events.
func (e *Engine) RunTurn(ctx context.Context, conversationID string, event domain.Event, root topic.RootFactory) (*domain.TurnResult, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}

	var result *domain.TurnResult
	err := e.sessions.Update(ctx, conversationID, func(ctx context.Context, conv *domain.Conversation) error {
		before := conv.Clone()
		res, err := e.dispatcher.RunTurn(ctx, conv, event, root)
		if err != nil {
			return err
		}
		result = res
		// Nothing ran: the event hit no live instance and was only reported.
		if res.Steps == 0 && !res.RootCreated {
			return session.ErrNoChanges
		}
		conv.Turns++
		conv.UpdatedAt = e.now()
		res.Diff = domain.Diff(before, conv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Send runs a turn with the engine's default root.
func (e *Engine) Send(ctx context.Context, conversationID string, event domain.Event) (*domain.TurnResult, error) {
	root := e.root
	if root == nil {
		root = func(context.Context, topic.Turn) (string, error) {
			return "", ErrNoRoot
		}
	}
	return e.RunTurn(ctx, conversationID, event, root)
}

// Inspect returns the stored conversation.
func (e *Engine) Inspect(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return e.sessions.Load(ctx, conversationID)
}

// Reset deletes the conversation, so its next event starts a fresh root.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	return e.sessions.Delete(ctx, conversationID)
}

// List returns the stored conversation IDs.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Topics returns the registered topic names.
func (e *Engine) Topics() []string {
	return e.registry.Names()
}

// Registry returns the topic registry the engine resolves instances against.
func (e *Engine) Registry() *topic.Registry {
	return e.registry
}

// Store returns the conversation store.
func (e *Engine) Store() ports.ConversationStore {
	return e.store
}
