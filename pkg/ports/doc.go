/*
Package ports defines the driven and driving ports of the topic engine.

These interfaces decouple the engine from storage backends and transports.
The dispatcher itself never imports them: it works on an in-memory
conversation blob, and the facade moves that blob in and out of a store.

# Key Interfaces

  - ConversationStore: persists and loads conversation blobs.
  - DistributedLocker: serializes turns of one conversation across replicas.
  - ConversationEngine: what transports (HTTP, NATS, MCP, CLI) drive.
*/
package ports
