package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/topic"
)

// maxIDAttempts bounds retries when a generator returns an ID already in use.
const maxIDAttempts = 16

// frame collects the work scheduled by one behavior invocation.
// rec is nil for the frame of the root factory.
type frame struct {
	rec  *domain.Instance
	work []work
}

// turn is the per-event execution state. It implements topic.Turn.
type turn struct {
	d      *Dispatcher
	conv   *domain.Conversation
	event  domain.Event
	logger *slog.Logger
	result *domain.TurnResult

	frames []*frame
	stack  []work
	steps  int

	// fatal is set when a nested init fails, so the failure aborts the turn
	// even if the creating behavior swallows the error returned by Create.
	fatal error

	creatingRoot  bool
	rootCandidate string
	rootID        string
}

var _ topic.Turn = (*turn)(nil)

func (d *Dispatcher) newTurn(conv *domain.Conversation, event domain.Event) *turn {
	return &turn{
		d:      d,
		conv:   conv,
		event:  event,
		logger: d.logger.With("conversation_id", conv.ID),
		result: &domain.TurnResult{ConversationID: conv.ID, Replies: []domain.Reply{}},
	}
}

func (t *turn) ConversationID() string {
	return t.conv.ID
}

func (t *turn) Event() domain.Event {
	return t.event
}

func (t *turn) Reply(text string) {
	reply := domain.Reply{Text: text}
	if f := t.current(); f != nil && f.rec != nil {
		reply.InstanceID = f.rec.ID
		reply.Topic = f.rec.TopicName
	}
	t.result.Replies = append(t.result.Replies, reply)
}

func (t *turn) Context() map[string]any {
	return t.conv.Context
}

func (t *turn) Logger() *slog.Logger {
	if f := t.current(); f != nil && f.rec != nil {
		return t.logger.With("instance_id", f.rec.ID, "topic", f.rec.TopicName)
	}
	return t.logger
}

// Instance returns a copy of the stored record; mutating it has no effect.
func (t *turn) Instance(id string) (*domain.Instance, bool) {
	rec, ok := t.conv.Instance(id)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Dispatch schedules the receive behavior of instanceID. It runs after the
// calling behavior returns and before the caller's own transition is applied.
func (t *turn) Dispatch(instanceID string) {
	f := t.current()
	if f == nil {
		t.logger.Warn("dispatch outside of a behavior ignored", "target", instanceID)
		return
	}
	f.work = append(f.work, work{kind: workReceive, id: instanceID})
}

// Create stores a new instance and runs its init behavior synchronously.
// Whatever init schedules, including its own transition, is deferred to the
// creating frame.
func (t *turn) Create(ctx context.Context, topicName string, args any, callbackID string) (string, error) {
	if t.fatal != nil {
		return "", t.fatal
	}

	def, ok := t.d.catalog.Lookup(topicName)
	if !ok {
		err := fmt.Errorf("create %q: %w", topicName, domain.ErrUnknownTopic)
		t.anomaly(ctx, "", topicName, err)
		return "", err
	}
	if callbackID != "" {
		if _, ok := t.conv.Instance(callbackID); !ok {
			err := fmt.Errorf("create %q under %s: %w", topicName, callbackID, domain.ErrUnknownInstance)
			t.anomaly(ctx, callbackID, topicName, err)
			return "", err
		}
	}

	id, err := t.allocateID()
	if err != nil {
		return "", err
	}

	rec := domain.NewInstance(id, topicName, callbackID, t.d.now())
	t.conv.Topical.Instances[id] = rec
	if t.creatingRoot && callbackID == "" && t.rootCandidate == "" {
		t.rootCandidate = id
	}
	t.d.emitInstance(ctx, domain.HookInstanceCreated, t.conv.ID, rec)
	t.logger.Debug("instance created", "instance_id", id, "topic", topicName, "callback_id", callbackID)

	tr, scheduled, err := t.invoke(ctx, rec, domain.BehaviorInit, func() (domain.Transition, error) {
		return def.Init(ctx, t, rec, args)
	})
	if err != nil {
		t.fatal = err
		return "", err
	}

	if parent := t.current(); parent != nil {
		parent.work = append(parent.work, scheduled...)
	} else {
		t.push(scheduled...)
	}

	if tr.Verb == domain.VerbComplete {
		return "", nil
	}
	return id, nil
}

// invoke runs one behavior inside its own frame and returns the transition
// together with the work to apply: first everything the behavior scheduled,
// then the work implied by its own transition.
func (t *turn) invoke(ctx context.Context, rec *domain.Instance, behavior domain.Behavior, fn func() (domain.Transition, error)) (domain.Transition, []work, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stay(), nil, err
	}
	if t.steps >= t.d.maxSteps {
		return domain.Stay(), nil, fmt.Errorf("%w: %d behavior invocations", domain.ErrStepLimit, t.d.maxSteps)
	}
	t.steps++

	f := &frame{rec: rec}
	t.frames = append(t.frames, f)
	tr, err := fn()
	t.frames = t.frames[:len(t.frames)-1]

	if t.fatal != nil {
		return domain.Stay(), nil, t.fatal
	}
	if err != nil {
		var perr *domain.ProtocolError
		if errors.As(err, &perr) {
			return domain.Stay(), nil, err
		}
		return domain.Stay(), nil, fmt.Errorf("%s.%s (instance %s): %w", rec.TopicName, behavior, rec.ID, err)
	}

	t.d.emitTransition(ctx, t.conv.ID, rec, behavior, tr.Verb)

	out := f.work
	switch tr.Verb {
	case domain.VerbAdvance:
		out = append(out, work{kind: workAdvance, id: rec.ID})
	case domain.VerbDispatch:
		out = append(out, work{kind: workReceive, id: rec.ID})
	case domain.VerbComplete:
		out = append(out, work{
			kind:     workComplete,
			id:       rec.ID,
			payload:  tr.Payload,
			fromInit: behavior == domain.BehaviorInit,
		})
	}
	return tr, out, nil
}

func (t *turn) allocateID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := t.d.ids.NewID(&t.conv.Topical)
		if _, taken := t.conv.Topical.Instances[id]; !taken && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique instance id after %d attempts", maxIDAttempts)
}

func (t *turn) current() *frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func (t *turn) anomaly(ctx context.Context, instanceID, topicName string, err error) {
	t.logger.Warn("topic anomaly", "err", err, "instance_id", instanceID, "topic", topicName)
	if t.d.hooks.OnAnomaly != nil {
		t.d.hooks.OnAnomaly(ctx, &domain.AnomalyEvent{
			EventBase:  domain.EventBase{Timestamp: t.d.now(), Type: domain.HookAnomaly, ConversationID: t.conv.ID},
			InstanceID: instanceID,
			TopicName:  topicName,
			Err:        err,
		})
	}
}
