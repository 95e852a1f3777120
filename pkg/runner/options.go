package runner

import (
	"log/slog"

	"github.com/aretw0/topical/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithEngine configures the conversation engine. Required.
func WithEngine(engine ports.ConversationEngine) Option {
	return func(r *Runner) {
		r.engine = engine
	}
}

// WithConversationID sets the conversation the runner talks to.
func WithConversationID(id string) Option {
	return func(r *Runner) {
		r.ConversationID = id
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithGreeting controls whether a new conversation is opened with a
// conversation_update event, so the root topic can speak first. Enabled by default.
func WithGreeting(greet bool) Option {
	return func(r *Runner) {
		r.Greet = greet
	}
}

// WithInterruptSource sets a channel that stops the runner when it fires or closes.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.InterruptSource = ch
	}
}
