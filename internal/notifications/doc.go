// Package notifications delivers recording events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event types cover the recording milestones so the
// session and daemon can emit consistent, user-friendly messages without
// duplicating HTTP glue. Per-event toggles in the config suppress categories
// the user does not want pushed.
//
// Extend this package if you need alternative transports; callers depend only
// on the simple Service interface.
package notifications
