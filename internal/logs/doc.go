// Package logs provides file tailing and structured log streaming shared by
// the CLI and daemon diagnostics.
//
// Tail streams log files with bounded memory usage, supports negative offsets
// for "last N lines" views, and powers follow-mode updates for
// `kinescope logs --follow`. StreamClient consumes the daemon's
// /api/logstream endpoint when richer, filterable structured events are
// wanted. Callers supply context deadlines so background polling shuts down
// cleanly when the CLI exits.
package logs
