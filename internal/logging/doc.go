// Package logging wraps log/slog with the project's output formats, shared
// field vocabulary, and the in-memory stream hub that feeds the daemon's live
// event endpoints.
package logging
