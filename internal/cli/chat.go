package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/topical"
	"github.com/aretw0/topical/internal/presentation/tui"
	"github.com/aretw0/topical/pkg/runner"
)

// ChatOptions configures an interactive chat session.
type ChatOptions struct {
	ConversationID string
	JSON           bool
	Fresh          bool
	Quiet          bool

	In  io.Reader
	Out io.Writer
}

// RunChat drives a conversation of stack's engine from In/Out until it ends.
func RunChat(ctx context.Context, stack *Stack, logger *slog.Logger, opts ChatOptions) error {
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if opts.ConversationID == "" {
		opts.ConversationID = "default"
	}

	if opts.Fresh {
		if err := stack.Engine.Reset(ctx, opts.ConversationID); err != nil {
			return err
		}
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		var textOpts []runner.TextHandlerOption
		if f, ok := out.(*os.File); ok && tui.IsTerminal(f) {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
		}
		handler = runner.NewTextHandler(in, out, textOpts...)
	}

	quiet := opts.Quiet || opts.JSON
	if !quiet {
		tui.PrintBanner(out, topical.Version)
		printSystemMessage(out, "Conversation '%s' active.", opts.ConversationID)
	}

	r := runner.NewRunner(
		runner.WithEngine(stack.Engine),
		runner.WithConversationID(opts.ConversationID),
		runner.WithInputHandler(handler),
		runner.WithLogger(logger),
	)
	err := r.Run(ctx)
	if err != nil && isInterrupted(err) && !quiet {
		printSystemMessage(out, "Interrupted. Run chat again with --session %s to resume.", opts.ConversationID)
	}
	return handleExecutionError(err)
}
