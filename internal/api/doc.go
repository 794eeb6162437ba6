// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal session and catalog models into
// transport-friendly DTOs that the CLI and other consumers can render without
// coupling to internal types.
//
// # Key Types
//
// Recording: transport representation of a catalog entry with origin, size,
// duration, and thumbnail metadata.
//
// SessionStatus: recording state machine snapshot with compositor, encoder,
// and per-stream supervision counters.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// SessionEvent/EventStreamResponse: structured event payloads for live
// streaming over the WebSocket endpoint and IPC polling.
//
// # Converters
//
// FromEntry: catalog.Entry -> Recording.
//
// FromSessionStatus: session.Status -> SessionStatus including stream
// supervision rows.
//
// FromEvents: events.Event batches -> SessionEvent batches.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (session.State, catalog.Origin) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds; zero times are omitted rather
// than serialized as the zero instant.
package api
