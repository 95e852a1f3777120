/*
Package runner implements the interactive chat loop for the Topical engine.

It acts as the bridge between a conversation engine and a terminal or another
line-oriented peer. The runner reads one line per turn, sends it as a message
event and presents the replies through a pluggable handler.

# Key Components

  - Runner: The loop. It stops when the root topic completes, on EOF, on
    "exit"/"quit", or on an interrupt signal.
  - IOHandler: Decouples how replies are shown and input is read.
  - TextHandler: Interactive CLI usage, with an optional content renderer.
  - JSONHandler: JSON-Lines for scripted clients.

# Usage

	r := runner.NewRunner(
		runner.WithEngine(engine),
		runner.WithConversationID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
