package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/topical/pkg/domain"
)

// Instance is the typed view of an instance record handed to behaviors.
// Behaviors mutate State in place; it is written back after they return.
type Instance[S any] struct {
	ID         string
	TopicName  string
	CallbackID string
	State      S
}

// Completion is what a parent receives when one of its children completes.
type Completion[C any] struct {
	InstanceID string
	Topic      string
	Payload    C
}

// InitFunc runs once, when the instance is created.
type InitFunc[S, A, R any] func(ctx context.Context, turn Turn, inst *Instance[S], args A, c *Controller[R]) error

// StepFunc is the shape of the next and receive behaviors.
type StepFunc[S, R any] func(ctx context.Context, turn Turn, inst *Instance[S], c *Controller[R]) error

// CompleteFunc handles the completion of a child whose payload type is C.
type CompleteFunc[S, R, C any] func(ctx context.Context, turn Turn, inst *Instance[S], child Completion[C], c *Controller[R]) error

type completionHandler[S, R any] func(ctx context.Context, turn Turn, inst *Instance[S], child *domain.Instance, payload any, c *Controller[R]) error

// Topic is a strongly typed topic definition.
// S is the instance state, A the init arguments and R the completion payload.
type Topic[S, A, R any] struct {
	name     string
	init     InitFunc[S, A, R]
	next     StepFunc[S, R]
	receive  StepFunc[S, R]
	handlers map[string]completionHandler[S, R]
}

var _ Definition = (*Topic[struct{}, struct{}, struct{}])(nil)

// New creates a topic definition. Behaviors are attached with the On* methods;
// missing behaviors are no-ops.
func New[S, A, R any](name string) *Topic[S, A, R] {
	return &Topic[S, A, R]{
		name:     name,
		handlers: make(map[string]completionHandler[S, R]),
	}
}

// Name returns the registry key of the topic.
func (t *Topic[S, A, R]) Name() string {
	return t.name
}

// OnInit sets the init behavior.
func (t *Topic[S, A, R]) OnInit(fn InitFunc[S, A, R]) *Topic[S, A, R] {
	t.init = fn
	return t
}

// OnNext sets the next behavior, run on every advance transition.
func (t *Topic[S, A, R]) OnNext(fn StepFunc[S, R]) *Topic[S, A, R] {
	t.next = fn
	return t
}

// OnReceive sets the receive behavior, run once per routed event.
func (t *Topic[S, A, R]) OnReceive(fn StepFunc[S, R]) *Topic[S, A, R] {
	t.receive = fn
	return t
}

// OnComplete registers the handler run when a child instance of the given
// topic completes. Each child topic may be registered at most once per parent;
// a second registration panics, since it can only happen during setup.
func OnComplete[S, A, R, CS, CA, C any](parent *Topic[S, A, R], child *Topic[CS, CA, C], fn CompleteFunc[S, R, C]) *Topic[S, A, R] {
	childName := child.Name()
	if _, exists := parent.handlers[childName]; exists {
		panic(fmt.Sprintf("topic %s: completion handler for %s already registered", parent.name, childName))
	}
	parent.handlers[childName] = func(ctx context.Context, turn Turn, inst *Instance[S], rec *domain.Instance, payload any, c *Controller[R]) error {
		typed, err := decodeValue[C](payload)
		if err != nil {
			return fmt.Errorf("completion payload from %s: %w", childName, err)
		}
		return fn(ctx, turn, inst, Completion[C]{
			InstanceID: rec.ID,
			Topic:      rec.TopicName,
			Payload:    typed,
		}, c)
	}
	return parent
}

// Create instantiates this topic under callbackID (empty for a root).
func (t *Topic[S, A, R]) Create(ctx context.Context, turn Turn, args A, callbackID string) (string, error) {
	return turn.Create(ctx, t.name, args, callbackID)
}

// Root returns a RootFactory that creates this topic as the conversation root.
func (t *Topic[S, A, R]) Root(args A) RootFactory {
	return func(ctx context.Context, turn Turn) (string, error) {
		return t.Create(ctx, turn, args, "")
	}
}

// Init implements Definition.
func (t *Topic[S, A, R]) Init(ctx context.Context, turn Turn, rec *domain.Instance, args any) (domain.Transition, error) {
	typedArgs, err := decodeValue[A](args)
	if err != nil {
		return domain.Stay(), fmt.Errorf("topic %s: init args: %w", t.name, err)
	}
	return t.run(rec, domain.BehaviorInit, func(inst *Instance[S], c *Controller[R]) error {
		if t.init == nil {
			return nil
		}
		return t.init(ctx, turn, inst, typedArgs, c)
	})
}

// Next implements Definition.
func (t *Topic[S, A, R]) Next(ctx context.Context, turn Turn, rec *domain.Instance) (domain.Transition, error) {
	return t.run(rec, domain.BehaviorNext, func(inst *Instance[S], c *Controller[R]) error {
		if t.next == nil {
			return nil
		}
		return t.next(ctx, turn, inst, c)
	})
}

// Receive implements Definition.
func (t *Topic[S, A, R]) Receive(ctx context.Context, turn Turn, rec *domain.Instance) (domain.Transition, error) {
	return t.run(rec, domain.BehaviorReceive, func(inst *Instance[S], c *Controller[R]) error {
		if t.receive == nil {
			return nil
		}
		return t.receive(ctx, turn, inst, c)
	})
}

// Complete implements Definition.
func (t *Topic[S, A, R]) Complete(ctx context.Context, turn Turn, rec *domain.Instance, child *domain.Instance, payload any) (domain.Transition, error) {
	handler, ok := t.handlers[child.TopicName]
	if !ok {
		return domain.Stay(), fmt.Errorf("%w: %s has no handler for %s", domain.ErrUnhandledCompletion, t.name, child.TopicName)
	}
	return t.run(rec, domain.BehaviorComplete, func(inst *Instance[S], c *Controller[R]) error {
		return handler(ctx, turn, inst, child, payload, c)
	})
}

// Handles implements Definition.
func (t *Topic[S, A, R]) Handles(childTopic string) bool {
	_, ok := t.handlers[childTopic]
	return ok
}

// Children implements Definition.
func (t *Topic[S, A, R]) Children() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// run decodes the state, runs fn and commits the state back to rec.
// A protocol violation wins over any error returned by fn, and leaves rec untouched.
func (t *Topic[S, A, R]) run(rec *domain.Instance, behavior domain.Behavior, fn func(*Instance[S], *Controller[R]) error) (domain.Transition, error) {
	state, err := loadState[S](rec.State)
	if err != nil {
		return domain.Stay(), fmt.Errorf("topic %s: %w", t.name, err)
	}

	inst := &Instance[S]{
		ID:         rec.ID,
		TopicName:  rec.TopicName,
		CallbackID: rec.CallbackID,
		State:      state,
	}
	c := newController[R](rec, behavior)

	fnErr := fn(inst, c)
	if c.violation != nil {
		return domain.Stay(), c.violation
	}
	if fnErr != nil {
		return domain.Stay(), fnErr
	}

	raw, err := json.Marshal(inst.State)
	if err != nil {
		return domain.Stay(), fmt.Errorf("topic %s: encode state: %w", t.name, err)
	}
	rec.State = raw
	return c.transition, nil
}
