package observability_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums every sample of the named family whose labels contain want.
func counterValue(t *testing.T, m *observability.Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if match {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func base(typ domain.HookType, at time.Time) domain.EventBase {
	return domain.EventBase{Timestamp: at, Type: typ, ConversationID: "c1"}
}

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()
	now := time.Now()

	hooks.OnTurnStart(ctx, &domain.TurnEvent{EventBase: base(domain.HookTurnStart, now)})
	hooks.OnInstanceCreated(ctx, &domain.InstanceEvent{EventBase: base(domain.HookInstanceCreated, now), InstanceID: "i1", TopicName: "host"})
	hooks.OnInstanceCreated(ctx, &domain.InstanceEvent{EventBase: base(domain.HookInstanceCreated, now), InstanceID: "i2", TopicName: "question"})
	hooks.OnTransition(ctx, &domain.TransitionEvent{EventBase: base(domain.HookTransition, now), TopicName: "question", Behavior: domain.BehaviorReceive, Verb: domain.VerbComplete})
	hooks.OnInstanceCompleted(ctx, &domain.InstanceEvent{EventBase: base(domain.HookInstanceCompleted, now), InstanceID: "i2", TopicName: "question"})
	hooks.OnAnomaly(ctx, &domain.AnomalyEvent{EventBase: base(domain.HookAnomaly, now), Err: fmt.Errorf("x: %w", domain.ErrUnknownInstance)})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{EventBase: base(domain.HookTurnEnd, now.Add(time.Millisecond)), Steps: 3})

	assert.Equal(t, 2.0, counterValue(t, m, "topical_instances_created_total", nil))
	assert.Equal(t, 1.0, counterValue(t, m, "topical_instances_completed_total", map[string]string{"topic": "question"}))
	assert.Equal(t, 1.0, counterValue(t, m, "topical_transitions_total", map[string]string{"behavior": "receive", "verb": "complete"}))
	assert.Equal(t, 1.0, counterValue(t, m, "topical_anomalies_total", map[string]string{"kind": "unknown_instance"}))
	assert.Equal(t, 1.0, counterValue(t, m, "topical_turns_total", map[string]string{"outcome": "ok"}))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnTurnEnd(context.Background(), &domain.TurnEvent{EventBase: base(domain.HookTurnEnd, time.Now()), Err: domain.ErrStepLimit})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `topical_turns_total{outcome="step_limit"} 1`)
}

func TestTurnOutcome(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.TurnEvent
		want string
	}{
		{"ok", domain.TurnEvent{}, "ok"},
		{"completed", domain.TurnEvent{RootCompleted: true}, "completed"},
		{"violation", domain.TurnEvent{Err: &domain.ProtocolError{}}, "protocol_violation"},
		{"canceled", domain.TurnEvent{Err: fmt.Errorf("wrap: %w", context.Canceled)}, "canceled"},
		{"other", domain.TurnEvent{Err: io.EOF}, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, observability.TurnOutcome(&tt.ev))
		})
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnTransition(ctx, &domain.TransitionEvent{EventBase: base(domain.HookTransition, time.Now()), InstanceID: "i1", Behavior: domain.BehaviorInit, Verb: domain.VerbAdvance})
	hooks.OnAnomaly(ctx, &domain.AnomalyEvent{EventBase: base(domain.HookAnomaly, time.Now()), Err: domain.ErrUnhandledCompletion})

	out := buf.String()
	assert.Contains(t, out, "verb=advance")
	assert.Contains(t, out, "kind=unhandled_completion")
	assert.Equal(t, 2, strings.Count(out, "conversation_id=c1"))
}
