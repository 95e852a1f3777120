package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/topical/pkg/domain"
)

// LogHooks returns lifecycle hooks that write an audit trail to logger.
// Transitions are logged at debug level, anomalies at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "turn_end", "conversation_id", e.ConversationID, "steps", e.Steps, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "turn_end", "conversation_id", e.ConversationID, "steps", e.Steps, "root_completed", e.RootCompleted)
		},
		OnInstanceCreated: func(ctx context.Context, e *domain.InstanceEvent) {
			logger.InfoContext(ctx, "instance_created",
				"conversation_id", e.ConversationID,
				"instance_id", e.InstanceID,
				"topic", e.TopicName,
				"callback_id", e.CallbackID,
			)
		},
		OnInstanceCompleted: func(ctx context.Context, e *domain.InstanceEvent) {
			logger.InfoContext(ctx, "instance_completed",
				"conversation_id", e.ConversationID,
				"instance_id", e.InstanceID,
				"topic", e.TopicName,
			)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"conversation_id", e.ConversationID,
				"instance_id", e.InstanceID,
				"behavior", string(e.Behavior),
				"verb", e.Verb.String(),
			)
		},
		OnAnomaly: func(ctx context.Context, e *domain.AnomalyEvent) {
			logger.WarnContext(ctx, "anomaly",
				"conversation_id", e.ConversationID,
				"instance_id", e.InstanceID,
				"topic", e.TopicName,
				"kind", AnomalyKind(e.Err),
				"err", e.Err,
			)
		},
	}
}
