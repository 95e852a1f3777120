package topic

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
)

// Policy decides what happens when a topic name is registered twice.
type Policy int

const (
	// Strict rejects a second registration with domain.ErrDuplicateTopic.
	Strict Policy = iota
	// Singleton silently keeps the first registration and returns it.
	Singleton
	// Overwrite replaces the existing registration unconditionally.
	Overwrite
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Singleton:
		return "singleton"
	case Overwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name back to its value.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "singleton":
		return Singleton, nil
	case "overwrite":
		return Overwrite, nil
	}
	return Strict, fmt.Errorf("unknown registration policy %q", s)
}

// Registry maps topic names to definitions.
// It is populated during application setup and only read while turns run.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]Definition
	logger *slog.Logger
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used to report ignored or replaced registrations.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		topics: make(map[string]Definition),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts def under its name according to policy and returns the
// definition that ends up registered.
func (r *Registry) Register(def Definition, policy Policy) (Definition, error) {
	if def == nil {
		return nil, fmt.Errorf("cannot register a nil topic")
	}
	name := def.Name()
	if name == "" {
		return nil, fmt.Errorf("cannot register a topic without a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, taken := r.topics[name]
	if !taken {
		r.topics[name] = def
		return def, nil
	}

	switch policy {
	case Singleton:
		r.logger.Debug("topic already registered, keeping first definition", "topic", name)
		return existing, nil
	case Overwrite:
		r.logger.Warn("topic redefined", "topic", name)
		r.topics[name] = def
		return def, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateTopic, name)
	}
}

// MustRegister is like Register but panics on error.
// Registration happens at setup time, where a collision leaves the process in
// an unknown state.
func (r *Registry) MustRegister(def Definition, policy Policy) Definition {
	registered, err := r.Register(def, policy)
	if err != nil {
		panic(err)
	}
	return registered
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.topics[name]
	return def, ok
}

// Names returns the registered topic names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// Validate checks that every completion handler refers to a registered topic,
// so a handler wired to a missing child fails at setup instead of mid-turn.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for name, def := range r.topics {
		for _, child := range def.Children() {
			if _, ok := r.topics[child]; !ok {
				missing = append(missing, fmt.Sprintf("%s -> %s", name, child))
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: completion handlers for unregistered topics: %s", domain.ErrUnknownTopic, strings.Join(missing, ", "))
}
