package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/topic"
)

type workKind int

const (
	workAdvance workKind = iota
	workReceive
	workComplete
)

func (k workKind) String() string {
	switch k {
	case workAdvance:
		return "advance"
	case workReceive:
		return "receive"
	case workComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// work is one pending step of the trampoline.
type work struct {
	kind    workKind
	id      string
	payload any

	// fromInit marks completions requested by init: such instances never
	// become durable and their record is dropped once the completion is applied.
	fromInit bool
}

// push adds works to the stack so that works[0] runs first.
func (t *turn) push(works ...work) {
	for i := len(works) - 1; i >= 0; i-- {
		t.stack = append(t.stack, works[i])
	}
}

func (t *turn) pop() work {
	w := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return w
}

// run creates the root on the first event, or routes the event to the root,
// then drains the work stack.
func (t *turn) run(ctx context.Context, root topic.RootFactory) error {
	store := &t.conv.Topical

	if !store.Started {
		if root == nil {
			return fmt.Errorf("conversation %s has no root and no root factory was given", t.conv.ID)
		}

		rootFrame := &frame{}
		t.frames = append(t.frames, rootFrame)
		t.creatingRoot = true
		id, err := root(ctx, t)
		t.creatingRoot = false
		t.frames = t.frames[:0]

		if t.fatal != nil {
			return t.fatal
		}
		if err != nil {
			return fmt.Errorf("create root: %w", err)
		}

		store.Started = true
		store.RootInstanceID = id
		t.rootID = id
		if id == "" {
			t.rootID = t.rootCandidate
		}
		t.result.RootCreated = true
		t.logger.Debug("root created", "root_instance_id", t.rootID)
		t.push(rootFrame.work...)
	} else {
		if store.RootInstanceID == "" {
			t.anomaly(ctx, "", "", fmt.Errorf("%w: conversation has no live root", domain.ErrUnknownInstance))
			return nil
		}
		t.rootID = store.RootInstanceID
		t.push(work{kind: workReceive, id: store.RootInstanceID})
	}

	return t.drain(ctx)
}

func (t *turn) drain(ctx context.Context) error {
	for len(t.stack) > 0 {
		w := t.pop()
		var err error
		switch w.kind {
		case workAdvance:
			err = t.step(ctx, w.id, domain.BehaviorNext)
		case workReceive:
			err = t.step(ctx, w.id, domain.BehaviorReceive)
		case workComplete:
			err = t.complete(ctx, w)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// step runs next or receive on a live instance.
func (t *turn) step(ctx context.Context, id string, behavior domain.Behavior) error {
	rec, def, ok := t.resolve(ctx, id)
	if !ok {
		return nil
	}

	_, scheduled, err := t.invoke(ctx, rec, behavior, func() (domain.Transition, error) {
		if behavior == domain.BehaviorNext {
			return def.Next(ctx, t, rec)
		}
		return def.Receive(ctx, t, rec)
	})
	if err != nil {
		return err
	}
	t.push(scheduled...)
	return nil
}

// complete finalizes an instance and delivers its payload to the parent.
func (t *turn) complete(ctx context.Context, w work) error {
	rec, ok := t.conv.Instance(w.id)
	if !ok {
		t.anomaly(ctx, w.id, "", fmt.Errorf("complete %s: %w", w.id, domain.ErrUnknownInstance))
		return nil
	}
	if rec.Completed() {
		t.anomaly(ctx, rec.ID, rec.TopicName, fmt.Errorf("complete %s: %w", rec.ID, domain.ErrInstanceCompleted))
		return nil
	}

	rec.MarkCompleted(t.d.now())
	if w.fromInit || t.d.prune {
		delete(t.conv.Topical.Instances, rec.ID)
	}
	t.d.emitInstance(ctx, domain.HookInstanceCompleted, t.conv.ID, rec)
	t.logger.Debug("instance completed", "instance_id", rec.ID, "topic", rec.TopicName)

	if rec.ID == t.rootID {
		t.result.RootCompleted = true
		t.result.RootPayload = w.payload
	}
	if rec.CallbackID == "" {
		return nil
	}

	parent, def, ok := t.resolve(ctx, rec.CallbackID)
	if !ok {
		return nil
	}
	if !def.Handles(rec.TopicName) {
		t.anomaly(ctx, parent.ID, parent.TopicName,
			fmt.Errorf("%w: %s has no handler for %s", domain.ErrUnhandledCompletion, parent.TopicName, rec.TopicName))
		return nil
	}

	_, scheduled, err := t.invoke(ctx, parent, domain.BehaviorComplete, func() (domain.Transition, error) {
		return def.Complete(ctx, t, parent, rec, w.payload)
	})
	if err != nil {
		return err
	}
	t.push(scheduled...)
	return nil
}

// resolve finds a live instance and its definition. Missing or finished
// instances and unknown topics are reported as anomalies.
func (t *turn) resolve(ctx context.Context, id string) (*domain.Instance, topic.Definition, bool) {
	rec, ok := t.conv.Instance(id)
	if !ok {
		t.anomaly(ctx, id, "", fmt.Errorf("%w: %s", domain.ErrUnknownInstance, id))
		return nil, nil, false
	}
	if rec.Completed() {
		t.anomaly(ctx, id, rec.TopicName, fmt.Errorf("%w: %s", domain.ErrInstanceCompleted, id))
		return nil, nil, false
	}
	def, ok := t.d.catalog.Lookup(rec.TopicName)
	if !ok {
		t.anomaly(ctx, id, rec.TopicName, fmt.Errorf("%w: %s", domain.ErrUnknownTopic, rec.TopicName))
		return nil, nil, false
	}
	return rec, def, true
}
