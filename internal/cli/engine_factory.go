package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/topical"
	"github.com/aretw0/topical/internal/adapters/file"
	"github.com/aretw0/topical/internal/config"
	"github.com/aretw0/topical/pkg/adapters/bolt"
	"github.com/aretw0/topical/pkg/adapters/memory"
	"github.com/aretw0/topical/pkg/adapters/redis"
	"github.com/aretw0/topical/pkg/ids"
	"github.com/aretw0/topical/pkg/observability"
	"github.com/aretw0/topical/pkg/persistence/middleware"
	"github.com/aretw0/topical/pkg/ports"
	"github.com/aretw0/topical/pkg/topic"
)

// Stack is an engine together with the resources it owns.
type Stack struct {
	Engine  *topical.Engine
	Store   ports.ConversationStore
	Metrics *observability.Metrics

	closers []func() error
}

// Close releases the store connections.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// StackOption customizes NewStack.
type StackOption func(*stackOptions)

type stackOptions struct {
	metrics  bool
	register func(*topic.Registry) error
	root     topic.RootFactory
	store    ports.ConversationStore
}

// WithMetrics collects prometheus metrics through the lifecycle hooks.
func WithMetrics() StackOption {
	return func(o *stackOptions) { o.metrics = true }
}

// WithTopics replaces the demo dialog with custom registrations and the
// root started by new conversations.
func WithTopics(register func(*topic.Registry) error, root topic.RootFactory) StackOption {
	return func(o *stackOptions) {
		o.register = register
		o.root = root
	}
}

// WithStoreOverride skips the configured backend. Used by tests.
func WithStoreOverride(store ports.ConversationStore) StackOption {
	return func(o *stackOptions) { o.store = store }
}

// NewStack builds the engine described by cfg.
func NewStack(cfg *config.Config, logger *slog.Logger, opts ...StackOption) (*Stack, error) {
	o := stackOptions{register: RegisterDemo, root: Profile.Root(struct{}{})}
	for _, opt := range opts {
		opt(&o)
	}

	reg := topic.NewRegistry(topic.WithRegistryLogger(logger))
	if err := o.register(reg); err != nil {
		return nil, fmt.Errorf("register topics: %w", err)
	}

	stack := &Stack{}
	var locker ports.DistributedLocker
	if o.store != nil {
		stack.Store = o.store
	} else {
		store, lock, closer, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		stack.Store, locker = store, lock
		if closer != nil {
			stack.closers = append(stack.closers, closer)
		}
	}

	store, err := wrapStore(stack.Store, cfg.Security)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}

	gen, err := ids.Parse(cfg.IDs)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}

	hooks := observability.LogHooks(logger)
	if o.metrics {
		stack.Metrics = observability.NewMetrics()
		hooks = hooks.Merge(stack.Metrics.Hooks())
	}

	engineOpts := []topical.Option{
		topical.WithStore(store),
		topical.WithLogger(logger),
		topical.WithLifecycleHooks(hooks),
		topical.WithIDGenerator(gen),
		topical.WithMaxSteps(cfg.MaxSteps),
		topical.WithPruneCompleted(cfg.PruneCompleted),
		topical.WithLockTTL(cfg.Store.LockTTL),
	}
	if locker != nil {
		engineOpts = append(engineOpts, topical.WithLocker(locker))
	}
	if o.root != nil {
		engineOpts = append(engineOpts, topical.WithRoot(o.root))
	}

	engine, err := topical.New(reg, engineOpts...)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	stack.Engine = engine
	stack.Store = store
	return stack, nil
}

// openStore builds the configured backend. Redis also provides the lock so
// several serve processes can share conversations.
func openStore(cfg *config.Config) (ports.ConversationStore, ports.DistributedLocker, func() error, error) {
	sc := cfg.Store
	switch sc.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil, nil
	case config.BackendFile:
		return file.New(sc.Dir), nil, nil, nil
	case config.BackendRedis:
		var opts []redis.Option
		if sc.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(sc.Redis.Prefix))
		}
		if sc.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(sc.Redis.TTL))
		}
		store := redis.New(sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB, opts...)
		return store, redis.NewLocker(store.Client(), sc.Redis.LockPrefix), store.Close, nil
	case config.BackendBolt:
		var opts []bolt.Option
		if sc.Bolt.Bucket != "" {
			opts = append(opts, bolt.WithBucket(sc.Bolt.Bucket))
		}
		if err := os.MkdirAll(filepath.Dir(sc.Bolt.Path), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create bolt directory: %w", err)
		}
		store, err := bolt.Open(sc.Bolt.Path, opts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		return store, nil, store.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// wrapStore applies PII masking and then encryption, when configured.
func wrapStore(store ports.ConversationStore, sec config.SecurityConfig) (ports.ConversationStore, error) {
	var mws []middleware.Middleware
	if len(sec.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sec.PIIPatterns))
	}
	active, fallback, err := sec.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Wrap(store, mws...), nil
}
