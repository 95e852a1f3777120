package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ports"
)

// ErrInterrupted is returned by Run when the loop was stopped by a signal.
var ErrInterrupted = errors.New("interrupted")

// Runner handles the chat loop of a conversation using provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// ConversationID identifies the conversation. Defaults to "default".
	ConversationID string

	// Greet opens a new conversation with a conversation_update event.
	Greet bool

	// InterruptSource stops the loop when it fires.
	InterruptSource <-chan struct{}

	engine ports.ConversationEngine
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		ConversationID: "default",
		Greet:          true,
		Logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the chat loop until the root topic completes, the input ends,
// the user types exit/quit or the process is interrupted.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("runner: engine is required (use WithEngine)")
	}
	handler := r.resolveHandler()

	signals := NewSignalManager(WithSignalLogger(r.Logger))
	defer signals.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-signals.Context().Done():
		case <-r.interrupts():
		case <-loopCtx.Done():
			return
		}
		cancel()
	}()

	done, err := r.resume(loopCtx, handler)
	if err != nil || done {
		return err
	}

	for {
		text, err := handler.Input(loopCtx)
		if err != nil {
			if signals.Settle() || loopCtx.Err() != nil {
				_ = handler.SystemOutput(context.Background(), "interrupted")
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrInterrupted
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		if text == "exit" || text == "quit" {
			return handler.SystemOutput(loopCtx, "Bye!")
		}

		done, err := r.turn(loopCtx, handler, domain.NewMessage(text))
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// resume greets new conversations and refuses to continue finished ones.
func (r *Runner) resume(ctx context.Context, handler IOHandler) (bool, error) {
	conv, err := r.engine.Inspect(ctx, r.ConversationID)
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		if !r.Greet {
			return false, nil
		}
		return r.turn(ctx, handler, domain.Event{Type: domain.EventConversationUpdate})
	case err != nil:
		return false, fmt.Errorf("failed to load conversation %s: %w", r.ConversationID, err)
	case conv.Done():
		return true, handler.SystemOutput(ctx, fmt.Sprintf("conversation %s already finished; reset it to start over", r.ConversationID))
	default:
		r.Logger.Debug("resuming conversation", "conversation_id", r.ConversationID, "turns", conv.Turns)
		return false, nil
	}
}

// turn sends one event and shows the result. It reports whether the
// conversation finished.
func (r *Runner) turn(ctx context.Context, handler IOHandler, event domain.Event) (bool, error) {
	res, err := r.engine.Send(ctx, r.ConversationID, event)
	if err != nil {
		return false, fmt.Errorf("turn error: %w", err)
	}
	if err := handler.Output(ctx, res); err != nil {
		return false, fmt.Errorf("output error: %w", err)
	}
	if res.RootCompleted {
		r.Logger.Debug("root completed", "conversation_id", r.ConversationID, "payload", res.RootPayload)
		return true, handler.SystemOutput(ctx, "conversation finished")
	}
	return false, nil
}

func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}

func (r *Runner) interrupts() <-chan struct{} {
	if r.InterruptSource == nil {
		return nil
	}
	return r.InterruptSource
}
