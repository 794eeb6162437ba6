// Package daemon coordinates the long-running Kinescope process and system
// integration points.
//
// It wires configuration, the recording session, catalog storage, the
// recovery log, and the webcam hotplug monitor into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon runs the
// orphaned-recording sweep at startup, serves the HTTP API and the event
// WebSocket, and owns notifications triggered by recovery.
//
// Keep orchestration logic here: capture, compositing, and persistence live
// in their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
