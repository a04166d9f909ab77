// Package ports defines the interfaces (ports) that connect the batching
// engine to infrastructure adapters and policy implementations.
//
// The batch manager depends only on these interfaces. Concrete
// implementations live in internal/courier, internal/transport, and in the
// callers that inject real freshness stores or confirmation prompts.
//
// # Port Interfaces
//
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [Courier]: Converts an identifier batch into remote calls and merged JSON
//   - [FreshnessStore]: Answers "does this identifier already have fresh data"
//   - [ConfirmPrompt]: Optional interactive hook for stale-data refresh
//   - [ResultSink]: Receives merged payloads produced by a flush
//   - [TokenSource]: Produces random tokens for anonymous group names
//
// FreshnessStore and ConfirmPrompt are deliberately under-specified policy
// seams: the built-in implementations always report "not known" and "don't
// fetch" respectively, and exist so that a store-backed policy can be
// substituted without touching the batching engine.
package ports
