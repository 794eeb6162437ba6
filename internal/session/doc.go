// Package session owns the recording state machine: idle → recording →
// paused ↔ recording → processing → idle.
//
// Start acquires sources in a fixed order. The screen is mandatory; webcam,
// microphone, and system audio each degrade independently with a warning.
// Everything acquired before a fatal failure unwinds in reverse, so a failed
// start always converges back to idle with nothing leaked. Stop is safe even
// mid-acquisition: it cancels the in-flight start, whose own rollback then
// releases whatever was partially acquired.
//
// While recording, the compositor feeds frames and the mixer feeds audio to
// the encoder sink through two pump goroutines; each chunk the encoder emits
// is retained in memory and appended to the recovery log in delivery order.
// Pause gates only the sink's intake, so the compositor keeps rendering and
// resumption is seamless; the paused wall time is excluded from the recorded
// duration.
//
// Stop drains the encoder and then walks the persistence chain: finalize the
// recovery scratch into storage; failing that, persist the in-memory chunk
// buffer directly; failing that, write the buffer to the export directory.
// Footage is abandoned to the startup sweep only when every tier fails.
package session
