package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "topical"

// Metrics records engine activity as Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	turns       *prometheus.CounterVec
	turnSeconds prometheus.Histogram
	turnSteps   prometheus.Histogram
	created     *prometheus.CounterVec
	completed   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	anomalies   *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
}

// NewMetrics creates the collectors and registers them on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "turns_total",
			Help:      "Processed turns by outcome.",
		}, []string{"outcome"}),
		turnSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent processing a turn.",
			Buckets:   prometheus.DefBuckets,
		}),
		turnSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "turn_steps",
			Help:      "Behavior invocations per turn.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "instances_created_total",
			Help:      "Topic instances created, by topic.",
		}, []string{"topic"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "instances_completed_total",
			Help:      "Topic instances completed, by topic.",
		}, []string{"topic"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transitions_total",
			Help:      "Behavior invocations by topic, behavior and requested verb.",
		}, []string{"topic", "behavior", "verb"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "anomalies_total",
			Help:      "Recoverable structural errors absorbed by the engine.",
		}, []string{"kind"}),
		started: make(map[string]time.Time),
	}
	m.registry.MustRegister(m.turns, m.turnSeconds, m.turnSteps, m.created, m.completed, m.transitions, m.anomalies)
	return m
}

// Registry exposes the underlying registry, e.g. to add process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(_ context.Context, e *domain.TurnEvent) {
			m.mu.Lock()
			m.started[e.ConversationID] = e.Timestamp
			m.mu.Unlock()
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.mu.Lock()
			start, ok := m.started[e.ConversationID]
			delete(m.started, e.ConversationID)
			m.mu.Unlock()
			if ok {
				m.turnSeconds.Observe(e.Timestamp.Sub(start).Seconds())
			}

			m.turns.WithLabelValues(TurnOutcome(e)).Inc()
			m.turnSteps.Observe(float64(e.Steps))
		},
		OnInstanceCreated: func(_ context.Context, e *domain.InstanceEvent) {
			m.created.WithLabelValues(e.TopicName).Inc()
		},
		OnInstanceCompleted: func(_ context.Context, e *domain.InstanceEvent) {
			m.completed.WithLabelValues(e.TopicName).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(e.TopicName, string(e.Behavior), e.Verb.String()).Inc()
		},
		OnAnomaly: func(_ context.Context, e *domain.AnomalyEvent) {
			m.anomalies.WithLabelValues(AnomalyKind(e.Err)).Inc()
		},
	}
}

// TurnOutcome classifies a finished turn for labeling.
func TurnOutcome(e *domain.TurnEvent) string {
	switch {
	case e.Err == nil && e.RootCompleted:
		return "completed"
	case e.Err == nil:
		return "ok"
	case errors.Is(e.Err, domain.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(e.Err, domain.ErrStepLimit):
		return "step_limit"
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// AnomalyKind maps an anomaly error to a short label.
func AnomalyKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownInstance):
		return "unknown_instance"
	case errors.Is(err, domain.ErrUnknownTopic):
		return "unknown_topic"
	case errors.Is(err, domain.ErrInstanceCompleted):
		return "instance_completed"
	case errors.Is(err, domain.ErrUnhandledCompletion):
		return "unhandled_completion"
	default:
		return "other"
	}
}
