/*
Package session serializes access to conversations.

The dispatcher assumes that no two turns of the same conversation overlap.
Manager enforces that precondition: it holds a per-conversation mutex
(reference counted, so idle conversations cost nothing) and, when configured,
a distributed lock so that replicas sharing a store do not interleave turns.
*/
package session
