/*
Package topical is a hierarchical, persistable topic engine for multi-turn dialogs.

A conversation is a tree of nested, independently stateful sub-dialogs called
topics. Each inbound event is routed to the root of the tree, which may handle
it or forward it to a live child. A topic may complete and hand a result to its
parent, or start a child and wait for it. The engine makes this protocol
deterministic, restartable across events and safe against conflicting
lifecycle transitions.

# Concept

Topics are registered once, by name, in a topic.Registry. Each running topic is
an instance: an ID, the topic name, opaque state and the ID of the instance to
notify on completion. Instances live in the conversation blob under the
reserved "topical" key, so a turn can be resumed from storage on any process.

Behaviors (init, next, receive and one completion handler per child topic)
request at most one lifecycle transition through their Controller:

  - Advance: run next on the same instance.
  - Dispatch: run receive against the current event (init only).
  - Complete: finish and deliver a payload to the parent.

Requesting two transitions in one invocation is a protocol violation that
aborts the turn. Nothing is saved when a turn fails.

# Usage

	reg := topic.NewRegistry()

	greet := topic.New[struct{}, struct{}, string]("greet").
		OnInit(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[struct{}], _ struct{}, c *topic.Controller[string]) error {
			turn.Reply("What's your name?")
			return nil
		}).
		OnReceive(func(ctx context.Context, turn topic.Turn, inst *topic.Instance[struct{}], c *topic.Controller[string]) error {
			turn.Reply("Hello, " + turn.Event().Text)
			return c.Complete(turn.Event().Text)
		})
	reg.MustRegister(greet, topic.Strict)

	eng, err := topical.New(reg, topical.WithRoot(greet.Root(struct{}{})))
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Send(ctx, "conversation-1", domain.NewMessage("hi"))
*/
package topical
