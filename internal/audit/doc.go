// Package audit implements event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Registry]: ordered per-kind handler lists; a failing handler never stops the rest.
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics,
//     or inline delivery when Synchronous is set.
//   - [Event]: structured audit record with id, timestamp, type, user, session, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit. That responsibility belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authcore or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
