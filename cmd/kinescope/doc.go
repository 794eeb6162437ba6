// Package main hosts the kinescope CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into JSON-RPC
// calls against the daemon socket: recording control, status snapshots,
// catalog queries, overlay placement, log and event tailing, and daemon
// lifecycle management. Catalog commands fall back to opening the database
// directly when no daemon is running, so `kinescope recordings list` works
// on a cold machine.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
