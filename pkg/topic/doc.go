/*
Package topic defines topic definitions and the registry that holds them.

A topic is a named, reusable sub-dialog made of four behaviors: init, next,
receive and a table of completion handlers keyed by child topic. Topics are
strongly typed on their instance state (S), init arguments (A) and completion
payload (R); the engine only sees the untyped Definition interface.

	type askState struct{ Question string }

	ask := topic.New[askState, string, string]("ask").
		OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[askState], q string, c *topic.Controller[string]) error {
			inst.State.Question = q
			turn.Reply(q)
			return nil
		}).
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[askState], c *topic.Controller[string]) error {
			return c.Complete(turn.Event().Text)
		})

Every behavior receives a Controller and may request at most one lifecycle
transition per invocation. A second request fails with
domain.ErrProtocolViolation and aborts the turn.
*/
package topic
