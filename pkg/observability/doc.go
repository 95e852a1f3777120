/*
Package observability provides tools for monitoring the Topical engine.

Metrics implements domain.LifecycleHooks on top of Prometheus collectors, so it
can be passed to the engine with topical.WithLifecycleHooks and combined with
other hooks through LifecycleHooks.Merge. LogHooks does the same for
structured logging.
*/
package observability
