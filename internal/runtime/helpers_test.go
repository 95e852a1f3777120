package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/topical/internal/runtime"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/topic"
	"github.com/stretchr/testify/require"
)

type ctxT = context.Context

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newDispatcher(t *testing.T, defs []topic.Definition, opts ...runtime.Option) *runtime.Dispatcher {
	t.Helper()
	reg := topic.NewRegistry()
	for _, def := range defs {
		reg.MustRegister(def, topic.Strict)
	}
	require.NoError(t, reg.Validate())
	return runtime.New(reg, opts...)
}

func send(t *testing.T, d *runtime.Dispatcher, conv *domain.Conversation, text string, root topic.RootFactory) *domain.TurnResult {
	t.Helper()
	res, err := d.RunTurn(context.Background(), conv, domain.NewMessage(text), root)
	require.NoError(t, err)
	return res
}

// recorder collects lifecycle events.
type recorder struct {
	anomalies   []error
	created     []string
	completed   []string
	transitions []string
	turnEnds    []*domain.TurnEvent
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnAnomaly: func(_ context.Context, e *domain.AnomalyEvent) {
			r.anomalies = append(r.anomalies, e.Err)
		},
		OnInstanceCreated: func(_ context.Context, e *domain.InstanceEvent) {
			r.created = append(r.created, e.TopicName)
		},
		OnInstanceCompleted: func(_ context.Context, e *domain.InstanceEvent) {
			r.completed = append(r.completed, e.TopicName)
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			r.transitions = append(r.transitions, e.TopicName+"."+string(e.Behavior)+":"+e.Verb.String())
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			r.turnEnds = append(r.turnEnds, e)
		},
	}
}

type answer struct {
	Answer string `json:"answer"`
}

// newQuestion asks "Q1?" on init and completes with whatever text it receives next.
func newQuestion() *topic.Topic[struct{}, struct{}, answer] {
	return topic.New[struct{}, struct{}, answer]("question").
		OnInit(func(ctx ctxT, turn topic.Turn, inst *topic.Instance[struct{}], _ struct{}, c *topic.Controller[answer]) error {
			turn.Reply("Q1?")
			return nil
		}).
		OnReceive(func(ctx ctxT, turn topic.Turn, inst *topic.Instance[struct{}], c *topic.Controller[answer]) error {
			return c.Complete(answer{Answer: turn.Event().Text})
		})
}

type routerState struct {
	Child string `json:"child"`
}

// newEcho stays idle forever and echoes every event it receives.
func newEcho() *topic.Topic[int, struct{}, struct{}] {
	return topic.New[int, struct{}, struct{}]("echo").
		OnReceive(func(ctx ctxT, turn topic.Turn, inst *topic.Instance[int], c *topic.Controller[struct{}]) error {
			inst.State++
			turn.Reply("echo: " + turn.Event().Text)
			return nil
		})
}
