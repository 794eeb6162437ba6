// Package recovery owns the scratch lifecycle of a recording: encoded chunks
// are appended to a .part file as they arrive, and finalization moves the
// completed file into storage and records it in the catalog.
//
// Appends write through a single O_APPEND handle, so bytes land on disk in
// delivery order. A JSON manifest sits beside each .part file with the codec
// and start time; the startup sweep uses it to salvage recordings from
// sessions that never finalized, probing the playable duration with ffprobe
// and cataloging the result as recovered.
//
// Finalize invalidates the recording id on a successful move. Discard after
// finalization is a no-op, so shutdown paths can call it unconditionally.
package recovery
