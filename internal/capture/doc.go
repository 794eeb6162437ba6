// Package capture acquires raw video frames and PCM audio from the screen,
// webcam, microphone, and desktop audio.
//
// Video sources produce BGRA frames on a channel consumed by exactly one
// goroutine; audio sources produce interleaved little-endian int16 buffers.
// Screen and webcam capture run external tools (ffmpeg, gst-launch) and slice
// their raw stdout into frames, so the daemon carries no cgo. The latest
// frame of each video source is kept in a Holder, which doubles as the
// staleness signal for the watchdog.
package capture
