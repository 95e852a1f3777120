/*
Package domain contains the core domain models of the Topical engine.

It defines the persisted shape of a conversation (the instance store), the
topic instance record, the lifecycle transition variant and the events emitted
while a turn is processed. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Conversation: The durable per-conversation blob. The engine owns the
    reserved "topical" key; everything else belongs to the host.
  - Topical: The instance store (instances by ID, root pointer, ID sequence).
  - Instance: One running activation of a topic, with opaque state and an
    optional callback (parent) reference.
  - Transition: The single lifecycle verb a behavior commits to (advance,
    dispatch, complete) plus the completion payload.
  - Event / Reply: The inbound trigger of a turn and the outbound messages
    produced while handling it.
*/
package domain
